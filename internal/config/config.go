package config

import (
	"os"
	"strconv"
	"time"

	"neurodyn/domain/run"
	"neurodyn/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Distance run.Params
	Cohort   CohortConfig
	Log      LogConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory run store.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	Migrate      bool
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	GinMode         string
	ShutdownTimeout time.Duration
}

// CohortConfig bounds cohort execution
type CohortConfig struct {
	Workers int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it.
// Callers load .env files first (godotenv).
func Load() (*Config, error) {
	config := &Config{
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		Cohort:   CohortConfig{Workers: getEnvIntOrDefault("EDR_WORKERS", 4)},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}

	params, err := loadDistanceParams()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load distance-rule parameters")
	}
	config.Distance = params

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		Migrate:      getEnvBoolOrDefault("DB_MIGRATE", true),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// loadDistanceParams overlays EDR_* variables on run.DefaultParams
func loadDistanceParams() (run.Params, error) {
	p := run.DefaultParams()
	p.Lambda = getEnvFloatOrDefault("EDR_LAMBDA", p.Lambda)
	p.SkipFit = getEnvBoolOrDefault("EDR_SKIP_FIT", p.SkipFit)
	p.Bins = getEnvIntOrDefault("EDR_BINS", p.Bins)
	p.Histogram = run.HistogramSource(getEnvOrDefault("EDR_HISTOGRAM", string(p.Histogram)))
	p.Edges = getEnvOrDefault("EDR_EDGES", p.Edges)
	p.InitialLambda = getEnvFloatOrDefault("EDR_INITIAL_LAMBDA", p.InitialLambda)
	p.NSTD = getEnvFloatOrDefault("EDR_NSTD", p.NSTD)
	p.NRini = getEnvIntOrDefault("EDR_NR_INI", p.NRini)
	p.NRfin = getEnvIntOrDefault("EDR_NR_FIN", p.NRfin)
	p.DistRange = getEnvFloatOrDefault("EDR_DIST_RANGE", p.DistRange)
	p.A1 = getEnvFloatOrDefault("EDR_A1", p.A1)
	p.Binary = getEnvBoolOrDefault("EDR_BINARY", p.Binary)
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT cannot be empty")
	}
	if config.Cohort.Workers <= 0 {
		return errors.ConfigInvalid("EDR_WORKERS must be positive")
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
