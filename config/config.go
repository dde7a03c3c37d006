// Package config provides environment-driven configuration for the jobsync
// subsystem. The debounce and backoff constants are product-tuned; they stay
// configurable rather than hard-coded.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/filmvoice/jobsync/internal/logger"
)

// Environment variable names
const (
	// EnvServerAddress is the base URL of the job service
	EnvServerAddress = "JOBSYNC_SERVER_ADDRESS"
	// EnvRefreshMinInterval is the minimum interval between snapshot fetches
	EnvRefreshMinInterval = "JOBSYNC_REFRESH_MIN_INTERVAL"
	// EnvReconnectInitialDelay is the first reconnection delay
	EnvReconnectInitialDelay = "JOBSYNC_RECONNECT_INITIAL_DELAY"
	// EnvReconnectMaxDelay is the reconnection backoff ceiling
	EnvReconnectMaxDelay = "JOBSYNC_RECONNECT_MAX_DELAY"
	// EnvRetentionWindow is how long terminal jobs stay in the session view
	EnvRetentionWindow = "JOBSYNC_RETENTION_WINDOW"
)

// Default values for the tuning knobs
const (
	DefaultServerAddress         = "http://localhost:8000"
	DefaultRefreshMinInterval    = 2 * time.Second
	DefaultReconnectInitialDelay = 1 * time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultRetentionWindow       = 24 * time.Hour
)

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvDuration retrieves a duration from an environment variable with a
// fallback value if unset or unparseable
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warnf("Invalid duration for %s: %q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

// Settings holds the tuning knobs for one sync session
type Settings struct {
	// ServerAddress is the base URL of the job service
	ServerAddress string
	// RefreshMinInterval is the fetch debounce window
	RefreshMinInterval time.Duration
	// ReconnectInitialDelay is the first reconnection backoff delay
	ReconnectInitialDelay time.Duration
	// ReconnectMaxDelay caps the reconnection backoff
	ReconnectMaxDelay time.Duration
	// RetentionWindow bounds how long terminal jobs stay in the session view
	RetentionWindow time.Duration
}

// DefaultSettings returns the default settings
func DefaultSettings() Settings {
	return Settings{
		ServerAddress:         DefaultServerAddress,
		RefreshMinInterval:    DefaultRefreshMinInterval,
		ReconnectInitialDelay: DefaultReconnectInitialDelay,
		ReconnectMaxDelay:     DefaultReconnectMaxDelay,
		RetentionWindow:       DefaultRetentionWindow,
	}
}

// Load reads settings from the environment, consulting a .env file if present
func Load() Settings {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	s := DefaultSettings()
	s.ServerAddress = GetEnv(EnvServerAddress, s.ServerAddress)
	s.RefreshMinInterval = GetEnvDuration(EnvRefreshMinInterval, s.RefreshMinInterval)
	s.ReconnectInitialDelay = GetEnvDuration(EnvReconnectInitialDelay, s.ReconnectInitialDelay)
	s.ReconnectMaxDelay = GetEnvDuration(EnvReconnectMaxDelay, s.ReconnectMaxDelay)
	s.RetentionWindow = GetEnvDuration(EnvRetentionWindow, s.RetentionWindow)
	return s
}
