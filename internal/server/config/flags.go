package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sekure/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     REST bind address (e.g., ":8080")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t int        access token validity, minutes
//	-r int        recovery ticket validity, minutes
//	-P duration   expired share purge interval
//	-m duration   maximum share lifetime
//	-k duration   how long expired shares are kept as tombstones
//	-o duration   timeout of an unfinished secret rotation
//	-L string     log level
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name (empty keeps share blobs in Postgres)
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-P", "-m", "-k", "-o", "-L", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	recoveryTicketTTL := fs.Int("r", int(config.RecoveryTicketTTL.Minutes()), "recovery ticket validity (in minutes)")

	fs.DurationVar(&config.PurgeInterval, "P", config.PurgeInterval, "expired share purge interval")
	fs.DurationVar(&config.MaxShareTTL, "m", config.MaxShareTTL, "maximum share lifetime")
	fs.DurationVar(&config.ShareRetention, "k", config.ShareRetention, "expired share tombstone retention")
	fs.DurationVar(&config.RotationTimeout, "o", config.RotationTimeout, "unfinished secret rotation timeout")
	fs.StringVar(&config.LogLevel, "L", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTokenTTL) * time.Minute
	config.RecoveryTicketTTL = time.Duration(*recoveryTicketTTL) * time.Minute
}
