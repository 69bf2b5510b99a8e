// Package config loads the daemon settings from CELERIX_* environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DataDir    string `env:"CELERIX_DATA_DIR" envDefault:"./data"`
	Port       string `env:"CELERIX_PORT" envDefault:"7001"`
	HTTPPort   string `env:"CELERIX_HTTP_PORT" envDefault:"7002"`
	DisableTLS bool   `env:"CELERIX_DISABLE_TLS"`
	// SeedFile is a JSON dataset loaded into an empty store on startup.
	SeedFile string `env:"CELERIX_SEED_FILE"`
	// DataKey is a hex encoded 32 byte key enabling at-rest encryption.
	DataKey  string `env:"CELERIX_DATA_KEY"`
	LogLevel string `env:"CELERIX_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the daemon configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("CELERIX_LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// Level returns the configured log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
