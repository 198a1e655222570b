// Package config provides configuration loading for the gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for datagate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("datagate")
		viper.SetConfigType("yaml")
	}

	// Every Config field is a single flat key (see config.go), so env vars
	// are read verbatim uppercase with no prefix or replacer: DATABASE_URL
	// overrides database_url, REDIS_URL overrides redis_url, and so on.
	viper.AutomaticEnv()
	bindFlatEnvKeys()
}

// findConfigFile searches standard locations for a datagate config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper from
// matching the binary "datagate" (no extension) in the current directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".datagate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "datagate"))
		}
	} else {
		paths = append(paths, "/etc/datagate")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "datagate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindFlatEnvKeys binds each Config field for environment variable
// overrides. AutomaticEnv alone only picks up a key once something has
// asked Viper about it; binding up front means an env var takes effect
// even if the YAML file never mentions the key.
func bindFlatEnvKeys() {
	keys := []string{
		"database_url",
		"policy_database_url",
		"redis_url",
		"http_addr",
		"log_level",
		"user_rate_limit_enabled",
		"user_rate_limit_window_sec",
		"user_rate_limit_max_calls",
		"user_rate_limit_block_sec",
		"rate_event_sampling",
		"db_connection_timeout",
		"http_timeout",
		"rate_limit_degraded_mode",
		"audit_queue_size",
		"dev_mode",
	}
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, applies dev defaults, and validates. Use LoadConfigRaw
// instead when a CLI flag (e.g. --dev) must override DevMode before
// defaults and validation run.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string in env-vars-only mode.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
