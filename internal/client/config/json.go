package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sekure/internal/flagx"
	"github.com/dmitrijs2005/sekure/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent fields
// leave the current value alone.
type JsonConfig struct {
	ServerURL       string         `json:"server_url"`
	ShareBaseURL    string         `json:"share_base_url"`
	DatabasePath    string         `json:"database_path"`
	EntropyURL      string         `json:"entropy_url"`
	EntropyInterval timex.Duration `json:"entropy_interval"`
	GateGraceWindow timex.Duration `json:"gate_grace_window"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	SessionTTL      timex.Duration `json:"session_ttl"`
	LogLevel        string         `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays cfg with the JSON file named by flagx.JsonConfigFlags.
// It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.ShareBaseURL, jc.ShareBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.EntropyURL, jc.EntropyURL)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.EntropyInterval.Duration > 0 {
		cfg.EntropyInterval = jc.EntropyInterval.Duration
	}
	if jc.GateGraceWindow.Duration > 0 {
		cfg.GateGraceWindow = jc.GateGraceWindow.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SessionTTL.Duration > 0 {
		cfg.SessionTTL = jc.SessionTTL.Duration
	}
}
