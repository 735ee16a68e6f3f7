package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName   string
	LogLevel      string
	HTTP          HTTPConfig
	Database      DatabaseConfig
	RabbitMQ      RabbitMQConfig
	MeterProvider MeterProviderConfig
	Export        ExportConfig
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Address         string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds report store connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL           string
	Exchange      string
	Queue         string
	RoutingKey    string
	DLQQueue      string
	PrefetchCount int
	Workers       int
}

// MeterProviderConfig holds meter data provider client settings
type MeterProviderConfig struct {
	URL       string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// ExportConfig holds export archive settings; an empty bucket disables archiving
type ExportConfig struct {
	ArchiveBucket   string
	ArchivePrefix   string
	ArchiveRegion   string
	ArchiveEndpoint string
	AccessKeyID     string
	SecretAccessKey string
}

// ArchiveEnabled reports whether generated exports are uploaded to S3
func (c ExportConfig) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-report-service"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Address:         getEnv("HTTP_ADDRESS", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 10),
		},
		RabbitMQ: RabbitMQConfig{
			URL:           getEnv("RABBITMQ_URL", ""),
			Exchange:      getEnv("RABBITMQ_EXCHANGE", "reports.exchange"),
			Queue:         getEnv("RABBITMQ_QUEUE", "report-queue"),
			RoutingKey:    getEnv("RABBITMQ_ROUTING_KEY", "report.requested"),
			DLQQueue:      getEnv("RABBITMQ_DLQ_QUEUE", "report-queue.dlq"),
			PrefetchCount: getEnvAsInt("RABBITMQ_PREFETCH", 10),
			Workers:       getEnvAsInt("RABBITMQ_WORKERS", 4),
		},
		MeterProvider: MeterProviderConfig{
			URL:       getEnv("METER_PROVIDER_URL", ""),
			Timeout:   getEnvAsDuration("METER_PROVIDER_TIMEOUT", 10*time.Second),
			RateLimit: getEnvAsFloat("METER_PROVIDER_RATE_LIMIT", 0),
			Burst:     getEnvAsInt("METER_PROVIDER_BURST", 1),
		},
		Export: ExportConfig{
			ArchiveBucket:   getEnv("EXPORT_ARCHIVE_BUCKET", ""),
			ArchivePrefix:   getEnv("EXPORT_ARCHIVE_PREFIX", "exports"),
			ArchiveRegion:   getEnv("EXPORT_ARCHIVE_REGION", "us-east-1"),
			ArchiveEndpoint: getEnv("EXPORT_ARCHIVE_ENDPOINT", ""),
			AccessKeyID:     getEnv("EXPORT_ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("EXPORT_ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	if cfg.MeterProvider.URL == "" {
		return nil, fmt.Errorf("METER_PROVIDER_URL is required but not set in environment variables")
	}

	if cfg.RabbitMQ.Workers < 1 {
		cfg.RabbitMQ.Workers = 1
	}
	if cfg.RabbitMQ.PrefetchCount < cfg.RabbitMQ.Workers {
		cfg.RabbitMQ.PrefetchCount = cfg.RabbitMQ.Workers
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
