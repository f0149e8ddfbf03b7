package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all runtime configuration for the hub.
type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Admission limits for new WebSocket connections.
	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRate      float64 `env:"CONNECTION_RATE_PER_SECOND" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"20"`

	// Per-connection outbound buffer; a client that falls this many
	// messages behind is evicted.
	SendBufferSize int `env:"SEND_BUFFER_SIZE" default:"16"`

	// Upper bound on how long shutdown waits for connections to drain.
	DrainTimeout time.Duration `env:"DRAIN_TIMEOUT" default:"10s"`

	// Optional Redis URL for the cross-instance broadcast bridge.
	// Empty disables the bridge.
	RedisURL string `env:"REDIS_URL"`
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number, got %q", cfg.Port)
	}
	if cfg.MaxConnections < 1 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.ConnectionRate <= 0 {
		return fmt.Errorf("CONNECTION_RATE_PER_SECOND must be positive, got %g", cfg.ConnectionRate)
	}
	if cfg.ConnectionBurst < 1 {
		return fmt.Errorf("CONNECTION_BURST must be positive, got %d", cfg.ConnectionBurst)
	}
	if cfg.SendBufferSize < 1 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", cfg.SendBufferSize)
	}
	if cfg.DrainTimeout <= 0 {
		return fmt.Errorf("DRAIN_TIMEOUT must be positive, got %s", cfg.DrainTimeout)
	}
	return nil
}
