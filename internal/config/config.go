package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"fractalscan/internal/errors"
)

// Ledger drivers
const (
	LedgerNone     = "none"
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerSQLite   = "sqlite"
	LedgerRedis    = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server ServerConfig
	Admin  AdminConfig
	Log    LogConfig
	Scan   ScanConfig
	Ledger LedgerConfig
	Lambda LambdaConfig
}

// ServerConfig holds public HTTP listener settings
type ServerConfig struct {
	Host            string
	Port            string
	GinMode         string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	StreamKeepAlive time.Duration // ping interval of GET /scans/stream
}

// Addr returns host:port for net/http
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AdminConfig holds the metrics and pprof listener settings
type AdminConfig struct {
	Enabled bool
	Port    string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // console or json
}

// ScanConfig holds scan processing settings
type ScanConfig struct {
	BatchConcurrency int
	MaxBatchSize     int
}

// LedgerConfig selects and configures the scan history backend
type LedgerConfig struct {
	Driver      string
	Capacity    int
	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	TTL         time.Duration
}

// LambdaConfig holds settings used only by the Lambda entrypoint
type LambdaConfig struct {
	MaxLogs int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: loadServerConfig(),
		Admin:  loadAdminConfig(),
		Log:    loadLogConfig(),
		Scan:   loadScanConfig(),
		Ledger: loadLedgerConfig(),
		Lambda: LambdaConfig{MaxLogs: getEnvIntOrDefault("LAMBDA_MAX_LOGS", 10000)},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnvOrDefault("HOST", "0.0.0.0"),
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		MaxBodyBytes:    int64(getEnvIntOrDefault("MAX_BODY_BYTES", 4<<20)),
		ReadTimeout:     getEnvDurationOrDefault("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDurationOrDefault("WRITE_TIMEOUT", 15*time.Second),
		StreamKeepAlive: getEnvDurationOrDefault("SSE_KEEPALIVE", 15*time.Second),
	}
}

func loadAdminConfig() AdminConfig {
	return AdminConfig{
		Enabled: getEnvBoolOrDefault("ADMIN_ENABLED", true),
		Port:    getEnvOrDefault("ADMIN_PORT", "6060"),
	}
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

func loadScanConfig() ScanConfig {
	return ScanConfig{
		BatchConcurrency: getEnvIntOrDefault("BATCH_CONCURRENCY", 4),
		MaxBatchSize:     getEnvIntOrDefault("MAX_BATCH_SIZE", 100),
	}
}

func loadLedgerConfig() LedgerConfig {
	driver := strings.ToLower(getEnvOrDefault("LEDGER_DRIVER", ""))
	if driver == "" {
		// an explicit connection string picks its driver
		switch {
		case os.Getenv("DATABASE_URL") != "":
			driver = LedgerPostgres
		case os.Getenv("REDIS_URL") != "":
			driver = LedgerRedis
		default:
			driver = LedgerMemory
		}
	}

	return LedgerConfig{
		Driver:      driver,
		Capacity:    getEnvIntOrDefault("LEDGER_CAPACITY", 1000),
		DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "fractalscan.db"),
		RedisURL:    getEnvOrDefault("REDIS_URL", ""),
		TTL:         getEnvDurationOrDefault("LEDGER_TTL", 7*24*time.Hour),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Server.MaxBodyBytes <= 0 {
		return errors.ConfigInvalid("MAX_BODY_BYTES must be positive")
	}
	if config.Scan.BatchConcurrency <= 0 {
		return errors.ConfigInvalid("BATCH_CONCURRENCY must be positive")
	}
	if config.Scan.MaxBatchSize <= 0 {
		return errors.ConfigInvalid("MAX_BATCH_SIZE must be positive")
	}

	switch config.Ledger.Driver {
	case LedgerNone:
	case LedgerMemory:
		if config.Ledger.Capacity <= 0 {
			return errors.ConfigInvalid("LEDGER_CAPACITY must be positive")
		}
	case LedgerPostgres:
		if config.Ledger.DatabaseURL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres ledger")
		}
	case LedgerSQLite:
		if config.Ledger.SQLitePath == "" {
			return errors.ConfigInvalid("SQLITE_PATH is required for the sqlite ledger")
		}
	case LedgerRedis:
		if config.Ledger.RedisURL == "" {
			return errors.ConfigInvalid("REDIS_URL is required for the redis ledger")
		}
	default:
		return errors.ConfigInvalid("unknown LEDGER_DRIVER " + strconv.Quote(config.Ledger.Driver))
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
