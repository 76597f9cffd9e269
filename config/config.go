// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything tunable from the environment.
type Config struct {
	// Port the HTTP server listens on.
	Port string
	// HistoryLimit is how many posting results are retained.
	HistoryLimit int
	// DefaultMinWait/DefaultMaxWait are the pacing band, in seconds, used
	// when a submission doesn't specify its own.
	DefaultMinWait float64
	DefaultMaxWait float64
	// IdleGrace is how long the worker lingers on an empty queue.
	IdleGrace time.Duration
	// RequestTimeout bounds each outbound Reddit request.
	RequestTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	historyLimit, err := getEnvInt("HISTORY_LIMIT", 500)
	if err != nil {
		return nil, err
	}

	minWait, err := getEnvFloat("MIN_WAIT", 4)
	if err != nil {
		return nil, err
	}
	maxWait, err := getEnvFloat("MAX_WAIT", 6)
	if err != nil {
		return nil, err
	}
	if maxWait < minWait {
		return nil, fmt.Errorf("MAX_WAIT (%v) must not be below MIN_WAIT (%v)", maxWait, minWait)
	}

	idleGrace, err := getEnvFloat("IDLE_GRACE", 1)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvFloat("REQUEST_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           getEnv("PORT", "10000"),
		HistoryLimit:   historyLimit,
		DefaultMinWait: minWait,
		DefaultMaxWait: maxWait,
		IdleGrace:      time.Duration(idleGrace * float64(time.Second)),
		RequestTimeout: time.Duration(requestTimeout * float64(time.Second)),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
