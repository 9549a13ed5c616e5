// Package config loads and validates the gateway configuration from a YAML
// file with environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cinegate/tmdb-gateway/pkg/ratelimit"
)

// Config is the full gateway configuration.
type Config struct {
	Server     ServerConfig                `yaml:"server"`
	Redis      RedisConfig                 `yaml:"redis"`
	TMDB       TMDBConfig                  `yaml:"tmdb"`
	Bulk       BulkConfig                  `yaml:"bulk"`
	RateLimits map[string]ratelimit.Policy `yaml:"rate_limits"`
	Logging    LoggingConfig               `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds the cache and rate-limit store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TMDBConfig holds upstream API settings.
type TMDBConfig struct {
	BaseURL         string `yaml:"base_url"`
	BearerToken     string `yaml:"bearer_token"`
	DefaultLanguage string `yaml:"default_language"`
}

// BulkConfig tunes bulk request handling.
type BulkConfig struct {
	MaxIDs      int `yaml:"max_ids"`
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with working defaults for everything except the
// TMDB bearer token, which has no safe default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		TMDB: TMDBConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			DefaultLanguage: "es-ES",
		},
		Bulk: BulkConfig{
			MaxIDs:      50,
			Concurrency: 8,
		},
		RateLimits: ratelimit.DefaultPolicies(),
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file, merges it over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables. These cover the
// values that differ per deployment and should not live in a checked-in file.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("TMDB_BEARER_TOKEN"); v != "" {
		c.TMDB.BearerToken = v
	}
	if v := os.Getenv("TMDB_BASE_URL"); v != "" {
		c.TMDB.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for values the gateway cannot run
// without.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.TMDB.BearerToken == "" {
		return fmt.Errorf("tmdb.bearer_token is required (set TMDB_BEARER_TOKEN)")
	}
	if c.TMDB.BaseURL == "" {
		return fmt.Errorf("tmdb.base_url is required")
	}
	if c.Bulk.MaxIDs <= 0 {
		return fmt.Errorf("bulk.max_ids must be positive, got %d", c.Bulk.MaxIDs)
	}
	if c.Bulk.Concurrency <= 0 {
		return fmt.Errorf("bulk.concurrency must be positive, got %d", c.Bulk.Concurrency)
	}
	for endpoint, policy := range c.RateLimits {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("rate_limits.%s: %w", endpoint, err)
		}
	}
	return nil
}
