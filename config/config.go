// Package config loads service settings from the environment. A .env file
// in the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
	Kafka     KafkaConfig
}

type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// DatabaseConfig selects the store. Driver is memory, sqlite or postgres.
type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	URL        string
}

// EngineConfig tunes reconciliation.
type EngineConfig struct {
	Timezone        string
	DuplicateWindow time.Duration
	MinConfidence   int
	ReviewThreshold int
	PolicyFile      string
}

type SchedulerConfig struct {
	Interval time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads the environment. Missing variables take their defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	window, err := time.ParseDuration(getEnv("DUPLICATE_WINDOW", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DUPLICATE_WINDOW: %w", err)
	}
	minConfidence, err := strconv.Atoi(getEnv("MIN_CONFIDENCE", "85"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_CONFIDENCE: %w", err)
	}
	threshold, err := strconv.Atoi(getEnv("REVIEW_THRESHOLD", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_THRESHOLD: %w", err)
	}
	interval, err := time.ParseDuration(getEnv("SCHEDULER_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Port:     port,
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "sqlite"),
			SQLitePath: getEnv("SQLITE_PATH", "./data/attendance.db"),
			URL:        getEnv("DATABASE_URL", ""),
		},
		Engine: EngineConfig{
			Timezone:        getEnv("TIMEZONE", "UTC"),
			DuplicateWindow: window,
			MinConfidence:   minConfidence,
			ReviewThreshold: threshold,
			PolicyFile:      getEnv("POLICY_FILE", ""),
		},
		Scheduler: SchedulerConfig{Interval: interval},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "attendance.punches"),
			GroupID: getEnv("KAFKA_GROUP_ID", "attendance-engine"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be memory, sqlite or postgres, got %q", c.Database.Driver)
	}
	if _, err := c.Engine.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if c.Engine.DuplicateWindow < 0 {
		return fmt.Errorf("DUPLICATE_WINDOW must not be negative")
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 100 {
		return fmt.Errorf("MIN_CONFIDENCE must be between 0 and 100")
	}
	if c.Engine.ReviewThreshold < 1 {
		return fmt.Errorf("REVIEW_THRESHOLD must be at least 1")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	return nil
}

// Location resolves the engine's time zone.
func (c EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
