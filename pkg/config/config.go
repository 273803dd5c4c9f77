package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Storage       StorageConfig
	Worker        WorkerConfig
	Security      SecurityConfig
	Import        ImportConfig
	Observability ObservabilityConfig
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
	Type      string // local | s3
	LocalPath string
	S3Bucket  string
	S3Region  string
}

type WorkerConfig struct {
	ImportPoolSize   int
	CategoryPoolSize int
	MaxAttempts      int
	PollInterval     time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	QueueLease       time.Duration
	SweeperSchedule  string
	ShutdownTimeout  time.Duration
}

type SecurityConfig struct {
	CredentialSecret string
}

type ImportConfig struct {
	StatusTxLimit      int
	DownloadRetries    int
	DownloadBackoff    time.Duration
	DownloadBackoffMax time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "bank-import-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			S3Bucket:  getEnv("STORAGE_S3_BUCKET", ""),
			S3Region:  getEnv("STORAGE_S3_REGION", ""),
		},
		Worker: WorkerConfig{
			ImportPoolSize:   getEnvAsInt("WORKER_IMPORT_POOL_SIZE", 4),
			CategoryPoolSize: getEnvAsInt("WORKER_CATEGORY_POOL_SIZE", 2),
			MaxAttempts:      getEnvAsInt("WORKER_MAX_ATTEMPTS", 5),
			PollInterval:     getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
			BackoffInitial:   getEnvAsDuration("WORKER_BACKOFF_INITIAL", 5*time.Second),
			BackoffMax:       getEnvAsDuration("WORKER_BACKOFF_MAX", 5*time.Minute),
			QueueLease:       getEnvAsDuration("WORKER_QUEUE_LEASE", 5*time.Minute),
			SweeperSchedule:  getEnv("WORKER_SWEEPER_SCHEDULE", "*/5 * * * *"),
			ShutdownTimeout:  getEnvAsDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Security: SecurityConfig{
			CredentialSecret: getEnv("CREDENTIAL_SECRET", ""),
		},
		Import: ImportConfig{
			StatusTxLimit:      getEnvAsInt("IMPORT_STATUS_TX_LIMIT", 50),
			DownloadRetries:    getEnvAsInt("IMPORT_DOWNLOAD_RETRIES", 3),
			DownloadBackoff:    getEnvAsDuration("IMPORT_DOWNLOAD_BACKOFF", 500*time.Millisecond),
			DownloadBackoffMax: getEnvAsDuration("IMPORT_DOWNLOAD_BACKOFF_MAX", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Security.CredentialSecret == "" {
		return nil, errors.New("CREDENTIAL_SECRET is required")
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
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
