// Package config loads NASPulse configuration from file, environment, and
// built-in defaults, and builds the process logger from it.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// configPath overrides the search path when non-empty; otherwise
// naspulse.yaml is looked up in ., ./configs, and /etc/naspulse.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8093)
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.rate_limit_burst", 100)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Appliance connection
	v.SetDefault("dsm.host", "")
	v.SetDefault("dsm.port", 5001)
	v.SetDefault("dsm.username", "")
	v.SetDefault("dsm.password", "")
	v.SetDefault("dsm.otp_code", "")
	v.SetDefault("dsm.use_tls", true)
	v.SetDefault("dsm.timeout", "10s")
	v.SetDefault("dsm.max_calls_per_second", 8)
	v.SetDefault("dsm.call_burst", 16)

	// Sources
	v.SetDefault("sources.temperature_unit", "celsius")

	// Scheduler
	v.SetDefault("sched.max_in_flight", 4)
	v.SetDefault("sched.poll_timeout", "15s")
	v.SetDefault("sched.policy.backoff_multiplier", 2.0)
	v.SetDefault("sched.policy.accel_factor", 0.75)
	v.SetDefault("sched.policy.idle_factor", 4.0)

	// Aggregation
	v.SetDefault("aggregate.failure_threshold", 3)

	// History
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "./data/naspulse.db")
	v.SetDefault("history.retention", "168h")
	v.SetDefault("history.prune_interval", "1h")

	// Auth
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "1h")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("naspulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/naspulse")
	}

	// Environment variable support: NASPULSE_DSM_HOST=nas.local
	v.SetEnvPrefix("NASPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
