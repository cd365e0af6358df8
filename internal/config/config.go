// Package config loads lexy configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the CLI and daemon need to wire the system.
type Config struct {
	// StorePath is the SQLite database file.
	StorePath string `mapstructure:"store_path"`

	// BackendURL is the remote backend base URL.
	BackendURL string `mapstructure:"backend_url"`

	// AuthToken is the bearer token for the remote backend. Empty means
	// unauthenticated: local-only operation, replay passes no-op.
	AuthToken string `mapstructure:"auth_token"`

	// CatalogDir is the drop directory for catalog batch files.
	CatalogDir string `mapstructure:"catalog_dir"`

	// DashboardPort is the local status dashboard port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile is the rotating log destination; empty logs to stderr.
	LogFile string `mapstructure:"log_file"`

	// Offline forces the connectivity signal off, for travel or testing.
	Offline bool `mapstructure:"offline"`
}

// Load reads configuration from the given file (or the default
// $HOME/.lexy/config.yaml when path is empty), layered under LEXY_*
// environment variables. A missing config file is fine; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	lexyDir := filepath.Join(home, ".lexy")

	v.SetDefault("store_path", filepath.Join(lexyDir, "lexy.db"))
	v.SetDefault("backend_url", "https://api.lexy.app")
	v.SetDefault("auth_token", "")
	v.SetDefault("catalog_dir", filepath.Join(lexyDir, "catalog"))
	v.SetDefault("dashboard_port", 7312)
	v.SetDefault("log_file", "")
	v.SetDefault("offline", false)

	v.SetEnvPrefix("LEXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(lexyDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
