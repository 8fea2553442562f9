package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sekure/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgs first so REPL arguments and -c do not trip
// the parser.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-d", "-e", "-i", "-g", "-t", "-s", "-L"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "backend base URL")
	fs.StringVar(&cfg.ShareBaseURL, "l", cfg.ShareBaseURL, "base URL of share links")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.EntropyURL, "e", cfg.EntropyURL, "remote entropy endpoint")
	entropyInterval := fs.Int("i", int(cfg.EntropyInterval.Seconds()), "entropy refill interval (in seconds)")
	fs.DurationVar(&cfg.GateGraceWindow, "g", cfg.GateGraceWindow, "strong-auth grace window")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.DurationVar(&cfg.SessionTTL, "s", cfg.SessionTTL, "session key lifetime")
	fs.StringVar(&cfg.LogLevel, "L", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.EntropyInterval = time.Duration(*entropyInterval) * time.Second
}
