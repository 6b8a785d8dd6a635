package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Import        ImportConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ImportConfig tunes the catalog import pipeline.
type ImportConfig struct {
	// SupplierMarker selects the sheet to process when a sheet name contains it
	// (case-insensitive). Empty means all sheets are processed.
	SupplierMarker string
	// SkipRows is the number of leading front-matter rows skipped per sheet.
	SkipRows int
	// MinISBNLength is the minimum digit count for an ISBN to act as identity.
	MinISBNLength int
	// WriteBatchSize bounds insert/update chunks against the store.
	WriteBatchSize int
	// SnapshotPageSize bounds each page when reading the existing catalog.
	SnapshotPageSize int
	// HistoryLimit bounds the persisted import-report history per owner.
	HistoryLimit int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "catalog-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Import: ImportConfig{
			SupplierMarker:   getEnv("IMPORT_SUPPLIER_MARKER", "ivrea"),
			SkipRows:         getEnvAsInt("IMPORT_SKIP_ROWS", 0),
			MinISBNLength:    getEnvAsInt("IMPORT_MIN_ISBN_LENGTH", 10),
			WriteBatchSize:   getEnvAsInt("IMPORT_WRITE_BATCH_SIZE", 100),
			SnapshotPageSize: getEnvAsInt("IMPORT_SNAPSHOT_PAGE_SIZE", 500),
			HistoryLimit:     getEnvAsInt("IMPORT_HISTORY_LIMIT", 20),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
