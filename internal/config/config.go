package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Chrome    ChromeConfig
	Coverage  CoverageConfig
	SourceMap SourceMapConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"7777"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// ChromeConfig holds browser launch configuration.
type ChromeConfig struct {
	Binary   string        `envconfig:"CHROME_BINARY"`
	Headless bool          `envconfig:"CHROME_HEADLESS" default:"true"`
	Coverage bool          `envconfig:"CHROME_COVERAGE" default:"true"`
	Timeout  time.Duration `envconfig:"CHROME_TIMEOUT" default:"5m"`
}

// CoverageConfig holds conversion and output configuration.
type CoverageConfig struct {
	InferNonCovered  bool     `envconfig:"COVERAGE_INFER_NON_COVERED" default:"true"`
	InterpolateLines bool     `envconfig:"COVERAGE_INTERPOLATE_LINES" default:"true"`
	Include          []string `envconfig:"COVERAGE_INCLUDE"`
	Exclude          []string `envconfig:"COVERAGE_EXCLUDE" default:"**/node_modules/**"`
	Output           string   `envconfig:"COVERAGE_OUTPUT" default:"coverage/coverage-final.json"`
}

// SourceMapConfig holds source map resolution configuration.
type SourceMapConfig struct {
	Fetch   bool          `envconfig:"SOURCEMAP_FETCH" default:"false"`
	Timeout time.Duration `envconfig:"SOURCEMAP_TIMEOUT" default:"10s"`
	Retries int           `envconfig:"SOURCEMAP_RETRIES" default:"2"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "7777",
			Host: "0.0.0.0",
		},
		Chrome: ChromeConfig{
			Headless: true,
			Coverage: true,
			Timeout:  5 * time.Minute,
		},
		Coverage: CoverageConfig{
			InferNonCovered:  true,
			InterpolateLines: true,
			Exclude:          []string{"**/node_modules/**"},
			Output:           "coverage/coverage-final.json",
		},
		SourceMap: SourceMapConfig{
			Fetch:   false,
			Timeout: 10 * time.Second,
			Retries: 2,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           false,
		},
	}
}
