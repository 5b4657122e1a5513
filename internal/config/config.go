// Package config loads chronicle's runtime configuration: defaults in
// code, overridden by an optional YAML file, overridden by CHRONICLE_*
// environment variables — the same three-tier precedence as the
// teacher's own internal/config package, retargeted from its server/
// transport/auth concerns to a single-binary store's concerns (where the
// database directory lives, which user name new IDs are minted under,
// and how verbosely it logs).
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is chronicle's full runtime configuration.
type Config struct {
	DB   DBConfig   `yaml:"db"`
	Log  LogConfig  `yaml:"log"`
	User UserConfig `yaml:"user"`
}

// DBConfig locates the on-disk store (internal/storage).
type DBConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls slog's minimum level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// UserConfig names the user new IDs are minted under (§3's "<user>"
// segment of the ID scheme).
type UserConfig struct {
	Name string `yaml:"name"`
}

// Load reads configuration from an optional YAML file and environment
// variables, in that order, each overriding the prior tier's defaults.
func Load() (Config, error) {
	cfg := Config{
		DB:   DBConfig{Path: "chronicle.db"},
		Log:  LogConfig{Level: "info"},
		User: UserConfig{Name: "u"},
	}

	if path := os.Getenv("CHRONICLE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if dbPath := os.Getenv("CHRONICLE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("CHRONICLE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if user := os.Getenv("CHRONICLE_USER"); user != "" {
		cfg.User.Name = user
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// ParseLevel turns a config log-level string into a slog.Level, erroring
// on anything it doesn't recognize.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}
