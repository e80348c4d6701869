package logging

import (
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Environment types
const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
	EnvTest        = "test"
)

// GetConfigFromEnv creates a logger configuration based on environment variables
// (LOG_LEVEL, LOG_FORMAT, ENVIRONMENT, LOG_ADD_SOURCE). Unparseable values
// leave DefaultConfig in place.
func GetConfigFromEnv() Config {
	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		config = DefaultConfig
	}
	return config.Normalize()
}

// Normalize lowercases values and applies environment-specific overrides.
func (c Config) Normalize() Config {
	c.Level = strings.ToLower(c.Level)
	c.Format = strings.ToLower(c.Format)
	c.Environment = strings.ToLower(c.Environment)

	switch c.Environment {
	case EnvProduction:
		c.Format = "json"
		c.AddSource = false
	case EnvTest:
		if c.Format == "" {
			c.Format = "text"
		}
		c.AddSource = false
	case EnvDevelopment:
		if c.Format == "" {
			c.Format = "text"
		}
		if c.Level == "" {
			c.Level = "debug"
		}
	}
	return c
}
