package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sekure/internal/flagx"
	"github.com/dmitrijs2005/sekure/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// accept both "90s" and integer nanoseconds.
type JsonConfig struct {
	ListenAddr        string         `json:"listen_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	AccessTokenTTL    timex.Duration `json:"access_token_ttl"`
	RecoveryTicketTTL timex.Duration `json:"recovery_ticket_ttl"`
	PurgeInterval     timex.Duration `json:"purge_interval"`
	MaxShareTTL       timex.Duration `json:"max_share_ttl"`
	ShareRetention    timex.Duration `json:"share_retention"`
	RotationTimeout   timex.Duration `json:"rotation_timeout"`
	LogLevel          string         `json:"log_level"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}

// parseJson overlays config with the file named by -c/-config or
// $SEKURE_CONFIG. Fields absent from the file keep their value. It panics
// if the file cannot be read or parsed.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RecoveryTicketTTL, c.RecoveryTicketTTL)
	setDuration(&config.PurgeInterval, c.PurgeInterval)
	setDuration(&config.MaxShareTTL, c.MaxShareTTL)
	setDuration(&config.ShareRetention, c.ShareRetention)
	setDuration(&config.RotationTimeout, c.RotationTimeout)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}
