// Package server provides configuration loading with runtime defaults and
// sanitization for the Castwire relay.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the relay configuration. All settings are loadable from the
// environment; zero values are replaced with defaults by sanitize.
type Config struct {
	Port              string        `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxFrameSize      int64         `envconfig:"MAX_FRAME_SIZE" default:"4096"`
	RateLimitPerSec   float64       `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
	RateLimitBurst    int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	StatusLogInterval time.Duration `envconfig:"STATUS_LOG_INTERVAL" default:"60s"`
	ShutdownGrace     time.Duration `envconfig:"SHUTDOWN_GRACE" default:"5s"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
}

// NewConfig returns a Config populated with default values for all settings.
func NewConfig() Config {
	var cfg Config
	return cfg.sanitize()
}

// LoadConfig reads configuration from environment variables, falling back to
// defaults for anything unset.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}
	return cfg.sanitize(), nil
}

func (c Config) sanitize() Config {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if !strings.HasPrefix(c.Port, ":") && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:8080"}
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 4096
	}
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = 5
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.StatusLogInterval <= 0 {
		c.StatusLogInterval = time.Minute
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}
