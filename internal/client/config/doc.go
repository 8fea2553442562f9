// Package config loads runtime configuration for the sekure CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or $SEKURE_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     backend base URL
//	-l string     base URL used in share links (defaults to -a)
//	-d string     path of the local SQLite database
//	-e string     remote entropy endpoint, "{n}" is replaced by the byte count
//	-i int        entropy refill interval (seconds)
//	-g duration   strong-auth grace window
//	-t duration   per-request timeout
//	-s duration   lifetime of persisted session keys
//	-L string     log level (debug, info, warn, error)
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "https://vault.example.com",
//	  "share_base_url": "https://share.example.com",
//	  "database_path": "/home/me/.config/sekure/vault.db",
//	  "entropy_url": "https://entropy.example.com/bytes?n={n}",
//	  "entropy_interval": "30s",
//	  "gate_grace_window": "1m",
//	  "request_timeout": "10s",
//	  "session_ttl": "12h",
//	  "log_level": "info"
//	}
package config
