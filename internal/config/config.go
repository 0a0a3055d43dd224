package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Metrics server configuration
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	// Database configuration
	DatabasePath string

	// Fitbit API configuration
	FitbitBaseURL      string
	FitbitConsumerKey  string
	FitbitSecret       string
	FitbitVerifyCode   string
	FitbitSubscriberID string

	// Mirror (timeline display) API configuration
	MirrorBaseURL      string
	MirrorClientID     string
	MirrorClientSecret string

	// Public domain, used to build OAuth redirect URLs
	Domain string

	// Internal API configuration
	InternalAPIKey string

	// Hourly sweep schedule (standard cron expression)
	SweepSchedule string

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables
// It fails fast if required variables are missing
func Load() (*Config, error) {
	cfg := &Config{
		// Optional values with defaults
		Host:               getEnv("HOST", "localhost"),
		Port:               getEnvInt("PORT", 4201),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		MetricsHost:        getEnv("METRICS_HOST", "localhost"),
		MetricsPort:        getEnvInt("METRICS_PORT", 4202),
		DatabasePath:       getEnv("DATABASE_PATH", "./data.db"),
		FitbitBaseURL:      getEnv("FITBIT_BASE_URL", "https://api.fitbit.com"),
		FitbitSubscriberID: getEnv("FITBIT_SUBSCRIBER_ID", "m-distance"),
		MirrorBaseURL:      getEnv("MIRROR_BASE_URL", "https://www.googleapis.com/mirror/v1"),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "0 * * * *"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	// Required values
	var missingVars []string

	cfg.FitbitConsumerKey = os.Getenv("FITBIT_CONSUMER_KEY")
	if cfg.FitbitConsumerKey == "" {
		missingVars = append(missingVars, "FITBIT_CONSUMER_KEY")
	}

	cfg.FitbitSecret = os.Getenv("FITBIT_CONSUMER_SECRET")
	if cfg.FitbitSecret == "" {
		missingVars = append(missingVars, "FITBIT_CONSUMER_SECRET")
	}

	cfg.FitbitVerifyCode = os.Getenv("FITBIT_VERIFY_CODE")
	if cfg.FitbitVerifyCode == "" {
		missingVars = append(missingVars, "FITBIT_VERIFY_CODE")
	}

	cfg.MirrorClientID = os.Getenv("MIRROR_CLIENT_ID")
	if cfg.MirrorClientID == "" {
		missingVars = append(missingVars, "MIRROR_CLIENT_ID")
	}

	cfg.MirrorClientSecret = os.Getenv("MIRROR_CLIENT_SECRET")
	if cfg.MirrorClientSecret == "" {
		missingVars = append(missingVars, "MIRROR_CLIENT_SECRET")
	}

	cfg.Domain = os.Getenv("DOMAIN")
	if cfg.Domain == "" {
		missingVars = append(missingVars, "DOMAIN")
	}

	cfg.InternalAPIKey = os.Getenv("INTERNAL_API_KEY")
	if cfg.InternalAPIKey == "" {
		missingVars = append(missingVars, "INTERNAL_API_KEY")
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
