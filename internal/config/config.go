package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBSource         string
	Port             string
	Env              string
	PaystackSecret   string
	PaystackBaseURL  string
	ProcessorTimeout time.Duration
	RedisAddr        string // optional; empty disables the replay cache
	AMQPURL          string // optional; empty disables event publishing
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	secret := os.Getenv("PAYSTACK_SECRET_KEY")
	if secret == "" {
		return nil, fmt.Errorf("PAYSTACK_SECRET_KEY environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	timeout := 15 * time.Second
	if raw := os.Getenv("PROCESSOR_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PROCESSOR_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return &Config{
		DBSource:         dbSource,
		Port:             port,
		Env:              env,
		PaystackSecret:   secret,
		PaystackBaseURL:  os.Getenv("PAYSTACK_BASE_URL"),
		ProcessorTimeout: timeout,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		AMQPURL:          os.Getenv("AMQP_URL"),
	}, nil
}
