package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds the client configuration.
type Config struct {
	API struct {
		BaseURL   string        `env:"API_BASE_URL" env-default:"http://localhost:2000"`
		Token     string        `env:"API_TOKEN"`
		Cookie    string        `env:"API_COOKIE"`
		Timeout   time.Duration `env:"API_TIMEOUT" env-default:"10s"`
		RateLimit float64       `env:"API_RATE_LIMIT" env-default:"20"`
		RateBurst int           `env:"API_RATE_BURST" env-default:"10"`
	}

	Socket struct {
		URL        string        `env:"SOCKET_URL" env-default:"ws://localhost:2000/ws"`
		AckTimeout time.Duration `env:"SOCKET_ACK_TIMEOUT" env-default:"10s"`
	}

	Feed struct {
		PageSize          int `env:"FEED_PAGE_SIZE" env-default:"5"`
		LookupConcurrency int `env:"FEED_LOOKUP_CONCURRENCY" env-default:"8"`
	}

	Chat struct {
		RollbackOnFailure bool `env:"CHAT_ROLLBACK_ON_FAILURE" env-default:"false"`
	}

	Store struct {
		Driver      string `env:"STORE_DRIVER" env-default:"pebble"`
		PebbleDir   string `env:"STORE_PEBBLE_DIR" env-default:".socialclient/lastseen"`
		PostgresDSN string `env:"STORE_POSTGRES_DSN"`
	}

	AMQP struct {
		URL      string `env:"AMQP_URL"`
		Exchange string `env:"AMQP_EXCHANGE" env-default:"social.client"`
	}

	Otel struct {
		Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
		ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"social-client"`
	}

	Server struct {
		Addr       string `env:"SERVER_ADDR" env-default:"127.0.0.1:8090"`
		Token      string `env:"SERVER_TOKEN"`
		DebugRoute bool   `env:"SERVER_DEBUG_ROUTES" env-default:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" env-default:"info"`
	}

	Environment string `env:"ENV" env-default:"development"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("FEED_PAGE_SIZE must be positive, got %d", c.Feed.PageSize)
	}
	if c.Feed.LookupConcurrency <= 0 {
		return fmt.Errorf("FEED_LOOKUP_CONCURRENCY must be positive, got %d", c.Feed.LookupConcurrency)
	}
	switch c.Store.Driver {
	case "memory", "pebble":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("STORE_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}
