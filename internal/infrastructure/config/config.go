package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Application ApplicationConfig `json:"application"`
	Watch       WatchConfig       `json:"watch"`
	Sandbox     SandboxConfig     `json:"sandbox"`
	Session     SessionConfig     `json:"session"`
	Static      StaticConfig      `json:"static"`
	Logging     LogConfig         `json:"logging"`
	RateLimit   RateLimitConfig   `json:"rateLimit"`
}

// ServerConfig holds the network listener configuration.
type ServerConfig struct {
	Host     string `envconfig:"HOST" default:"0.0.0.0" json:"host"`
	Port     int    `envconfig:"PORT" default:"8000" json:"port"`
	Protocol string `envconfig:"PROTOCOL" default:"http" json:"protocol"`
}

// ApplicationConfig locates the application and names this worker.
type ApplicationConfig struct {
	Root   string `envconfig:"APP_ROOT" default:"application" json:"root"`
	Kind   string `envconfig:"APP_KIND" default:"server" json:"kind"`
	Worker int    `envconfig:"WORKER_ID" default:"1" json:"worker"`
}

// WatchConfig controls hot reload.
type WatchConfig struct {
	Enabled bool          `envconfig:"WATCH_ENABLED" default:"true" json:"enabled"`
	Timeout time.Duration `envconfig:"WATCH_TIMEOUT" default:"1s" json:"timeout"`
}

// SandboxConfig bounds hosted code execution.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s" json:"timeout"`
	MaxCallStack int           `envconfig:"SANDBOX_STACK" default:"1024" json:"maxCallStack"`
}

// SessionConfig configures the default authentication provider.
type SessionConfig struct {
	TTL               time.Duration `envconfig:"SESSION_TTL" default:"24h" json:"ttl"`
	Cookie            string        `envconfig:"SESSION_COOKIE" default:"token" json:"cookie"`
	MinPasswordLength int           `envconfig:"SESSION_MIN_PASSWORD" default:"8" json:"minPasswordLength"`
}

// StaticConfig configures the static and resources places.
type StaticConfig struct {
	Gzip    bool     `envconfig:"STATIC_GZIP" default:"true" json:"gzip"`
	Ignore  []string `envconfig:"STATIC_IGNORE" default:"**/.*,**/*~" json:"ignore"`
	MaxSize int64    `envconfig:"STATIC_MAX_SIZE" default:"10485760" json:"maxSize"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" json:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" json:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" json:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" json:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" json:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.Application.Worker < 1 {
		return fmt.Errorf("invalid config: WORKER_ID must be >= 1, got %d", c.Application.Worker)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: PORT out of range: %d", c.Server.Port)
	}
	if c.Watch.Timeout < 0 {
		return fmt.Errorf("invalid config: WATCH_TIMEOUT must not be negative")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8000,
			Protocol: "http",
		},
		Application: ApplicationConfig{
			Root:   "application",
			Kind:   "server",
			Worker: 1,
		},
		Watch: WatchConfig{
			Enabled: true,
			Timeout: time.Second,
		},
		Sandbox: SandboxConfig{
			Timeout:      5 * time.Second,
			MaxCallStack: 1024,
		},
		Session: SessionConfig{
			TTL:               24 * time.Hour,
			Cookie:            "token",
			MinPasswordLength: 8,
		},
		Static: StaticConfig{
			Gzip:    true,
			Ignore:  []string{"**/.*", "**/*~"},
			MaxSize: 10 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
