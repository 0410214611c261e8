package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8000"`
	AppURL      string `env:"APP_URL"`
	RedisURL    string `env:"REDIS_URL"`
	FrontendDir string `env:"FRONTEND_DIR"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	BusReconnectDelay time.Duration `env:"BUS_RECONNECT_DELAY" default:"5s"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRatePerIP     float64 `env:"CONNECTION_RATE_PER_IP" default:"10"`
	ConnectionRateBurst     int     `env:"CONNECTION_RATE_BURST" default:"20"`
	ClientSendBuffer        int     `env:"CLIENT_SEND_BUFFER" default:"64"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

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
	required := map[string]string{
		"REDIS_URL": cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if _, err := goredis.ParseURL(cfg.RedisURL); err != nil {
		return fmt.Errorf("REDIS_URL is invalid: %w", err)
	}

	if cfg.AppURL != "" {
		u, err := url.Parse(cfg.AppURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL)
		}
	}

	if cfg.BusReconnectDelay <= 0 {
		return errors.New("BUS_RECONNECT_DELAY must be positive")
	}

	positive := map[string]int{
		"MAX_WEBSOCKET_CONNECTIONS": cfg.MaxWebSocketConnections,
		"MAX_CONNECTIONS_PER_IP":    cfg.MaxConnectionsPerIP,
		"CONNECTION_RATE_BURST":     cfg.ConnectionRateBurst,
		"CLIENT_SEND_BUFFER":        cfg.ClientSendBuffer,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}
	if cfg.ConnectionRatePerIP <= 0 {
		return fmt.Errorf("CONNECTION_RATE_PER_IP must be positive, got %g", cfg.ConnectionRatePerIP)
	}

	return nil
}
