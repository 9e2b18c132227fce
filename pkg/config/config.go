package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Ingest        IngestConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type StorageConfig struct {
	LocalPath string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// IngestConfig tunes pipeline behavior that varies by export template.
type IngestConfig struct {
	// WorkbookSkipRows is the number of leading title rows before the header
	// in binary workbook exports.
	WorkbookSkipRows int
	// ZeroRevenueRowThreshold is the minimum row count at which a zero-revenue
	// batch is treated as a pipeline defect instead of an empty upload.
	ZeroRevenueRowThreshold int
}

// Load reads configuration from environment variables, picking up a local
// .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 20),
			AllowedOrigins:     []string{getEnv("CORS_ALLOWED_ORIGIN", "*")},
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "dripiv-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Ingest: IngestConfig{
			WorkbookSkipRows:        getEnvAsInt("INGEST_WORKBOOK_SKIP_ROWS", 0),
			ZeroRevenueRowThreshold: getEnvAsInt("INGEST_ZERO_REVENUE_ROW_THRESHOLD", 10),
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
