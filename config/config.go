package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"nationbank/database"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL             string
	DatabaseName            string
	DatabaseMaxConns        int32
	DatabaseMinConns        int32
	DatabaseMaxConnLifetime time.Duration

	// Logging
	LogLevel string

	// NATS configuration
	NATSServers       string // empty disables event forwarding
	NATSSubjectPrefix string

	// Ledger configuration
	AutoReleaseOnReject    bool          // rejected withdrawals return funds immediately
	ReconciliationInterval time.Duration // zero disables the background check

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // console, otlp or none
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int
	OTelServiceName          string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load(".")
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// PoolOptions returns the connection pool settings
func (c *Config) PoolOptions() database.PoolOptions {
	return database.PoolOptions{
		MaxConns:        c.DatabaseMaxConns,
		MinConns:        c.DatabaseMinConns,
		MaxConnLifetime: c.DatabaseMaxConnLifetime,
	}
}

// load reads an optional config.yaml from configPath, then applies environment overrides
func load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{
		DatabaseURL:             v.GetString("DATABASE_URL"),
		DatabaseName:            v.GetString("DATABASE_NAME"),
		DatabaseMaxConns:        v.GetInt32("DATABASE_MAX_CONNS"),
		DatabaseMinConns:        v.GetInt32("DATABASE_MIN_CONNS"),
		DatabaseMaxConnLifetime: v.GetDuration("DATABASE_MAX_CONN_LIFETIME"),

		LogLevel: v.GetString("LOG_LEVEL"),

		NATSServers:       v.GetString("NATS_SERVERS"),
		NATSSubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),

		AutoReleaseOnReject:    v.GetBool("LEDGER_AUTO_RELEASE_ON_REJECT"),
		ReconciliationInterval: v.GetDuration("RECONCILIATION_INTERVAL"),

		OTelEnabled:              v.GetBool("OTEL_ENABLED"),
		OTelExporterType:         strings.ToLower(v.GetString("OTEL_EXPORTER_TYPE")),
		OTelOTLPEndpoint:         v.GetString("OTEL_OTLP_ENDPOINT"),
		OTelExportIntervalMillis: v.GetInt("OTEL_EXPORT_INTERVAL_MILLIS"),
		OTelServiceName:          v.GetString("OTEL_SERVICE_NAME"),

		Environment: v.GetString("ENVIRONMENT"),
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}
	if config.ReconciliationInterval < 0 {
		return nil, fmt.Errorf("RECONCILIATION_INTERVAL cannot be negative")
	}
	switch config.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER_TYPE: %s", config.OTelExporterType)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_MAX_CONNS", 10)
	v.SetDefault("DATABASE_MIN_CONNS", 1)
	v.SetDefault("DATABASE_MAX_CONN_LIFETIME", "1h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("NATS_SUBJECT_PREFIX", "ledger")
	v.SetDefault("LEDGER_AUTO_RELEASE_ON_REJECT", true)
	v.SetDefault("RECONCILIATION_INTERVAL", "1h")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_TYPE", "console")
	v.SetDefault("OTEL_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_EXPORT_INTERVAL_MILLIS", 60000)
	v.SetDefault("OTEL_SERVICE_NAME", "nationbank")
	v.SetDefault("ENVIRONMENT", "development")
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:            "test",
		LogLevel:               "debug",
		NATSSubjectPrefix:      "ledger",
		AutoReleaseOnReject:    true,
		ReconciliationInterval: time.Hour,
		OTelExporterType:       "none",
		OTelServiceName:        "nationbank-test",
	}
}
