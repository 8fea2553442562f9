package config

import "github.com/caarlos0/env/v11"

// EnvPrefix is prepended to every variable name declared on Config.
const EnvPrefix = "SEKURE_"

// parseEnv overlays cfg with SEKURE_* environment variables. Unset
// variables leave the current value alone. It panics on malformed values.
func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
