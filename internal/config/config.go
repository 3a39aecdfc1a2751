package config

import (
	"os"
	"strconv"
	"time"

	"gometa/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `validate:"required"`
	Database DatabaseConfig
	Analysis AnalysisConfig `validate:"required"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string `validate:"required"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds archive database settings. An empty URL disables
// the archive entirely.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// Enabled reports whether an archive database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// AnalysisConfig holds default trim-and-fill settings
type AnalysisConfig struct {
	Estimator     string  `validate:"required"`
	BiasMethod    string  `validate:"required"`
	Level         float64 `validate:"required"`
	MaxIterations int     `validate:"required"`
	HartungKnapp  bool
	Prediction    bool
	MaxConcurrent int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	config.Server = *loadServerConfig()
	config.Database = *loadDatabaseConfig()
	config.Analysis = *loadAnalysisConfig()

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		ReadTimeout:  getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Estimator:     getEnvOrDefault("TRIMFILL_ESTIMATOR", "L0"),
		BiasMethod:    getEnvOrDefault("BIAS_METHOD", "egger"),
		Level:         getEnvFloatOrDefault("CONFIDENCE_LEVEL", 0.95),
		MaxIterations: getEnvIntOrDefault("TRIMFILL_MAX_ITERATIONS", 50),
		HartungKnapp:  getEnvBoolOrDefault("HARTUNG_KNAPP", false),
		Prediction:    getEnvBoolOrDefault("PREDICTION_INTERVAL", false),
		MaxConcurrent: getEnvIntOrDefault("BATCH_MAX_CONCURRENT", 4),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Analysis.Level <= 0 || config.Analysis.Level >= 1 {
		return errors.ConfigInvalid("confidence level must be in (0, 1)")
	}
	if config.Analysis.MaxIterations <= 0 {
		return errors.ConfigInvalid("max iterations must be positive")
	}
	if config.Analysis.MaxConcurrent <= 0 {
		return errors.ConfigInvalid("batch concurrency must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
