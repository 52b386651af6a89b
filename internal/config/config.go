package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`

	// HTTP server
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"HTTP_PORT" envDefault:"8080"`

	// Checkout
	InvoiceTTL       time.Duration `env:"INVOICE_TTL" envDefault:"15m"`
	LnurlTimeout     time.Duration `env:"LNURL_TIMEOUT" envDefault:"30s"`
	CommentMaxLength int           `env:"COMMENT_MAX_LENGTH" envDefault:"255"`

	// Revenue split
	PlatformFeePercent string `env:"PLATFORM_FEE_PERCENT" envDefault:"10"`

	// Expiry janitor
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
