package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Defaults applied when the corresponding APP_ variable is unset.
const (
	DefaultPort            = 9999
	DefaultWorkerCount     = 4
	DefaultServerKeepalive = 60 * time.Second
)

// Config carries every externally tunable setting. All values come from
// APP_-prefixed environment variables, loaded once at startup.
type Config struct {
	RedisURL                    string
	DefaultPaymentProcessorURL  string
	FallbackPaymentProcessorURL string
	ServerKeepalive             time.Duration
	WorkerCount                 int
	Port                        int
}

// Load reads the configuration from the environment. The Redis URL and
// both processor URLs are mandatory; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:                    os.Getenv("APP_REDIS_URL"),
		DefaultPaymentProcessorURL:  os.Getenv("APP_DEFAULT_PAYMENT_PROCESSOR_URL"),
		FallbackPaymentProcessorURL: os.Getenv("APP_FALLBACK_PAYMENT_PROCESSOR_URL"),
		ServerKeepalive:             DefaultServerKeepalive,
		WorkerCount:                 DefaultWorkerCount,
		Port:                        DefaultPort,
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("APP_REDIS_URL is required")
	}
	if cfg.DefaultPaymentProcessorURL == "" {
		return nil, fmt.Errorf("APP_DEFAULT_PAYMENT_PROCESSOR_URL is required")
	}
	if cfg.FallbackPaymentProcessorURL == "" {
		return nil, fmt.Errorf("APP_FALLBACK_PAYMENT_PROCESSOR_URL is required")
	}

	if v := os.Getenv("APP_SERVER_KEEPALIVE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid APP_SERVER_KEEPALIVE %q: %w", v, err)
		}
		cfg.ServerKeepalive = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("APP_PAYMENT_PROCESSOR_WORKER_COUNT"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil || count < 1 {
			return nil, fmt.Errorf("invalid APP_PAYMENT_PROCESSOR_WORKER_COUNT %q", v)
		}
		cfg.WorkerCount = count
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	return cfg, nil
}
