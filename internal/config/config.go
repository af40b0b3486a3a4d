// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr        string        `envconfig:"ADDR" default:"0.0.0.0:8080"`
	DatabaseURL string        `envconfig:"DB_URL" required:"true"`
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer   string        `envconfig:"JWT_ISS" default:"huddle"`
	TypingQuiet time.Duration `envconfig:"TYPING_QUIET" default:"3s"`

	AuthRateRequests int           `envconfig:"AUTH_RATE_REQUESTS" default:"10"`
	AuthRateWindow   time.Duration `envconfig:"AUTH_RATE_WINDOW" default:"1m"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
