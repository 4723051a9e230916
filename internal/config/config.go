// Package config loads tissue's CLI-level configuration: defaults for the
// CLI's actor name and the preferred output mode, read from
// ~/.config/tissue/config.yaml (or the path named by TISSUE_CONFIG) via
// viper, with flag values always taking precedence over the file and the
// file taking precedence over built-in defaults.
//
// This is distinct from the store's own on-disk layout, which is fixed and
// not user-configurable. Adapted from the teacher's internal/configfile (a
// metadata.json reader/writer for store-local settings) into a single
// user-level YAML file, since tissue keeps no store-local config file of its
// own — the store's only persisted setting, the id prefix, lives in the
// cache's metadata table (internal/store/schema.go).
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the CLI defaults a user can set once instead of passing on
// every invocation.
type Config struct {
	// Actor is the CLI's actor name when a command's --actor flag is unset.
	// No write records it: the store itself has no actor column (spec.md §3
	// names no such field), so this stays purely a CLI-level convention.
	Actor string `mapstructure:"actor" yaml:"actor"`
	// JSON selects structured output over the tabular renderer by default.
	JSON bool `mapstructure:"json" yaml:"json"`
}

// DefaultConfig returns the built-in defaults applied when no config file
// and no flag override either field.
func DefaultConfig() *Config {
	return &Config{Actor: "", JSON: false}
}

// DefaultPath returns the conventional config file location, honoring
// TISSUE_CONFIG when set.
func DefaultPath() string {
	if p := os.Getenv("TISSUE_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tissue", "config.yaml")
}

// Load reads the config file at path (or DefaultPath() if path is empty)
// via viper, falling back silently to DefaultConfig() when the file is
// absent — an unconfigured user is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("actor", cfg.Actor)
	v.SetDefault("json", cfg.JSON)
	v.SetEnvPrefix("TISSUE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path (or DefaultPath() if path is empty) as YAML,
// creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o640)
}
