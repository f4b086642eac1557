package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/Vasu1712/scenyx-editor/internal/logging"
)

type Config struct {
	Port              string `env:"PORT" default:"8080"`
	MultiplayerServer string `env:"MULTIPLAYER_SERVER" default:"ws://127.0.0.1:8080"`
	DatabaseURL       string `env:"DATABASE_URL"`
	ValkeyAddr        string `env:"VALKEY_ADDR"`
	JWTSecret         string `env:"JWT_SECRET"`
	AllowedOrigin     string `env:"ALLOWED_ORIGIN" default:"http://127.0.0.1:5173"`
	LogLevel          string `env:"LOG_LEVEL" default:"info"`
	LogFormat         string `env:"LOG_FORMAT" default:"json"`
	Debug             bool   `env:"DEBUG" default:"false"`

	PresenceQuietPeriod time.Duration `env:"PRESENCE_QUIET_PERIOD" default:"1s"`
	ReadyDelay          time.Duration `env:"READY_DELAY" default:"200ms"`
	TokenTTL            time.Duration `env:"TOKEN_TTL" default:"1h"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.L().Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PresenceQuietPeriod <= 0 {
		return errors.New("PRESENCE_QUIET_PERIOD must be positive")
	}
	if c.ReadyDelay <= 0 {
		return errors.New("READY_DELAY must be positive")
	}
	u, err := url.Parse(c.MultiplayerServer)
	if err != nil {
		return fmt.Errorf("MULTIPLAYER_SERVER is not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("MULTIPLAYER_SERVER has unsupported scheme %q", u.Scheme)
	}
	return nil
}

func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}
