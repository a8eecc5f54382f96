// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat server.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPort            = ":8080"
	defaultAllowedOrigins  = "http://localhost:8080"
	defaultMaxMessageSize  = 4096
	defaultRateLimitBurst  = 20
	defaultRateLimitRefill = time.Second
	defaultSendBufferSize  = 256
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "INFO"
)

var validate = validator.New()

// RateLimitConfig defines the parameters for per-connection request rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string        `env:"SERVER_PORT" validate:"required"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" validate:"gt=0"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" validate:"gt=0"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" validate:"gt=0"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=DEBUG INFO WARN ERROR"`
}

func defaultConfig() Config {
	return Config{
		Port:            defaultPort,
		AllowedOrigins:  defaultAllowedOrigins,
		MaxMessageSize:  defaultMaxMessageSize,
		RateLimitBurst:  defaultRateLimitBurst,
		RateLimitRefill: defaultRateLimitRefill,
		SendBufferSize:  defaultSendBufferSize,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
	}
}

// Sanitize replaces unset or non-positive values with their defaults.
func (c Config) Sanitize() Config {
	if strings.TrimSpace(c.Port) == "" {
		c.Port = defaultPort
	}
	if len(parseOrigins(c.AllowedOrigins)) == 0 {
		c.AllowedOrigins = defaultAllowedOrigins
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateLimitBurst
	}
	if c.RateLimitRefill <= 0 {
		c.RateLimitRefill = defaultRateLimitRefill
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	return c
}

// Validate reports configuration errors that sanitizing cannot repair.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Origins returns the allow-list as individual entries.
func (c Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// RateLimit returns the per-connection limiter settings.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefill}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables. Unset
// variables are filled in by Sanitize; values that cannot be parsed are an
// error.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	cfg = cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return &cfg, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
