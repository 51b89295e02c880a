// Package config loads the native CLI's TOML configuration.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir      string `toml:"data_dir"`      // directory holding the snapshot record
	SnapshotName string `toml:"snapshot_name"` // record name inside data_dir
	LogLevel     string `toml:"log_level"`     // zap level: debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DataDir:      ".",
		SnapshotName: "kinship.db",
		LogLevel:     "info",
	}
}

// Load reads a TOML config file, filling defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.SnapshotName == "" {
		cfg.SnapshotName = "kinship.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}
