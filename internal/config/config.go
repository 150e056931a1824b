// Package config provides configuration management for the analysis engine.
package config

import (
	"os"
	"strconv"
)

// Config holds engine configuration.
type Config struct {
	// Service
	ServiceName string
	LogLevel    string
	LogFormat   string

	// Analysis settings
	TemporalWindowHours int
	ConfidenceDecayDays int
	ForecastDays        int
	AnomalyThresholdStd float64

	// Worker settings
	Workers int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Service
		ServiceName: getEnv("SERVICE_NAME", "sentinel-analytics"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		// Analysis settings
		TemporalWindowHours: getEnvInt("TEMPORAL_WINDOW_HOURS", 24),
		ConfidenceDecayDays: getEnvInt("CONFIDENCE_DECAY_DAYS", 30),
		ForecastDays:        getEnvInt("FORECAST_DAYS", 30),
		AnomalyThresholdStd: getEnvFloat("ANOMALY_THRESHOLD_STD", 2.0),

		// Worker settings
		Workers: getEnvInt("ANALYSIS_WORKERS", 8),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
