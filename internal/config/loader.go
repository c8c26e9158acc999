package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper wires Viper's search path and environment-variable overrides
// the way the teacher's loader.go does for SENTINEL_GATE_*, here under the
// PRIVD_ prefix (e.g. PRIVD_STORAGE_DIR overrides storage.dir).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("privd")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PRIVD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches the standard locations for privd.yaml/.yml,
// requiring an explicit extension so it never matches the privd binary
// itself in the current directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{".", filepath.Join(home, ".privd"), "/etc/privd"}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "privd"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func bindNestedEnvKeys() {
	_ = viper.BindEnv("sockets.client.path")
	_ = viper.BindEnv("sockets.admin.path")
	_ = viper.BindEnv("sockets.agent.path")
	_ = viper.BindEnv("storage.dir")
	_ = viper.BindEnv("cache.capacity")
	_ = viper.BindEnv("monitor.ring_capacity")
	_ = viper.BindEnv("creds.client_default")
	_ = viper.BindEnv("creds.user_default")
	_ = viper.BindEnv("metrics.enabled")
	_ = viper.BindEnv("metrics.addr")
	_ = viper.BindEnv("audit.enabled")
	_ = viper.BindEnv("audit.dir")
	_ = viper.BindEnv("log.level")
	_ = viper.BindEnv("log.json")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file (if any), applies environment
// overrides and defaults, and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads and defaults the configuration without validating,
// so a caller can apply CLI flag overrides (e.g. --dev) first.
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
// loaded, or "" if the daemon is running on environment variables and
// defaults alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
