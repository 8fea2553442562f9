package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the sekure CLI.
type Config struct {
	ServerURL       string
	ShareBaseURL    string
	DatabasePath    string
	EntropyURL      string
	EntropyInterval time.Duration
	GateGraceWindow time.Duration
	RequestTimeout  time.Duration
	SessionTTL      time.Duration
	LogLevel        string
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vault.db"
	}
	return filepath.Join(dir, "sekure", "vault.db")
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.ShareBaseURL = ""
	c.DatabasePath = defaultDatabasePath()
	c.EntropyURL = ""
	c.EntropyInterval = 30 * time.Second
	c.GateGraceWindow = 60 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.SessionTTL = 12 * time.Hour
	c.LogLevel = "warn"
}

// ShareBase is where share links point. It defaults to the server itself.
func (c *Config) ShareBase() string {
	if c.ShareBaseURL != "" {
		return c.ShareBaseURL
	}
	return c.ServerURL
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
