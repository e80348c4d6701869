// Package config loads client settings from a YAML file and SIBLINGKIT_*
// environment variables, and assembles the store client stack they describe.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	kverrors "github.com/c0deZ3R0/go-sibling-kit/errors"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
)

// Cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CachePebble   = "pebble"
	CacheS3       = "s3"
)

// Config is the full client configuration. Environment variables override
// values from the file.
type Config struct {
	// Endpoint is the base URL of the store's HTTP interface.
	Endpoint     string        `yaml:"endpoint" env:"SIBLINGKIT_ENDPOINT" env-default:"http://127.0.0.1:8098"`
	Timeout      time.Duration `yaml:"timeout" env:"SIBLINGKIT_TIMEOUT" env-default:"30s"`
	ClientID     string        `yaml:"client_id" env:"SIBLINGKIT_CLIENT_ID"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"SIBLINGKIT_MAX_BODY_BYTES" env-default:"8388608"`
	MaxSiblings  int           `yaml:"max_siblings" env:"SIBLINGKIT_MAX_SIBLINGS" env-default:"0"`

	// BucketsFile points to bucket definitions (see siblingkit.BucketConfig).
	BucketsFile string `yaml:"buckets_file" env:"SIBLINGKIT_BUCKETS_FILE"`

	Retry   RetryConfig    `yaml:"retry" env-prefix:"SIBLINGKIT_RETRY_"`
	Cache   CacheConfig    `yaml:"cache" env-prefix:"SIBLINGKIT_CACHE_"`
	Metrics MetricsConfig  `yaml:"metrics" env-prefix:"SIBLINGKIT_METRICS_"`
	Log     logging.Config `yaml:"log"`
}

// RetryConfig retries requests that fail with a retryable error. One
// attempt disables retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" env-default:"1"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY" env-default:"100ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY" env-default:"5s"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER" env-default:"2"`
	Stores       bool          `yaml:"stores" env:"STORES" env-default:"false"`
}

// CacheConfig selects the read-through cache in front of the store.
type CacheConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" env-default:"none"`
	// DSN is the sqlite file, the postgres connection string or the pebble directory.
	DSN          string        `yaml:"dsn" env:"DSN"`
	StaleOnError bool          `yaml:"stale_on_error" env:"STALE_ON_ERROR" env-default:"false"`
	MaxStale     time.Duration `yaml:"max_stale" env:"MAX_STALE" env-default:"0s"`
	S3           S3Config      `yaml:"s3" env-prefix:"S3_"`
}

// S3Config configures the s3 cache backend.
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	Prefix          string `yaml:"prefix" env:"PREFIX"`
	Region          string `yaml:"region" env:"REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"USE_PATH_STYLE" env-default:"false"`
	CreateBucket    bool   `yaml:"create_bucket" env:"CREATE_BUCKET" env-default:"false"`
}

// MetricsConfig enables the Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED" env-default:"false"`
}

// Load reads path when it is not empty, then applies the environment, then
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, configError(fmt.Errorf("failed to read config %s: %w", path, err))
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, configError(fmt.Errorf("failed to read environment: %w", err))
	}
	cfg.Log = cfg.Log.Normalize()
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheNone
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv is Load with the file taken from SIBLINGKIT_CONFIG, if set.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("SIBLINGKIT_CONFIG"))
}

// Validate checks the settings NewClient depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return configError(fmt.Errorf("endpoint %q must be an http(s) URL", c.Endpoint))
	}
	if c.Timeout <= 0 {
		return configError(errors.New("timeout must be positive"))
	}
	if c.MaxBodyBytes < 0 {
		return configError(errors.New("max_body_bytes cannot be negative"))
	}
	if c.MaxSiblings < 0 {
		return configError(errors.New("max_siblings cannot be negative"))
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		return configError(errors.New("retry settings cannot be negative"))
	}
	if c.Cache.MaxStale < 0 {
		return configError(errors.New("cache max_stale cannot be negative"))
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheSQLite, CachePostgres, CachePebble:
		if c.Cache.DSN == "" {
			return configError(fmt.Errorf("cache backend %s requires a dsn", c.Cache.Backend))
		}
	case CacheS3:
		if c.Cache.S3.Bucket == "" {
			return configError(errors.New("cache backend s3 requires a bucket"))
		}
	default:
		return configError(fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	return nil
}

func configError(err error) error {
	e := kverrors.NewValidationError(kverrors.OpConfig, err)
	e.Component = "config"
	return e
}
