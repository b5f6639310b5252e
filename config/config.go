// Package config provides application configuration management.
// It loads a .env file when present, then environment variables with defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/warp/rent-engine/rent"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Alerts    AlertConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Path string
}

// RedisConfig holds the alert cache configuration. An empty URL disables it.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// AlertConfig holds classifier options.
type AlertConfig struct {
	WindowDays int
	WindowMode rent.WindowMode
}

// SchedulerConfig holds the daily alert sweep configuration.
type SchedulerConfig struct {
	Enabled  bool
	CronSpec string
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*Config, error) {
	// Missing .env is fine; existing env vars are not overridden.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "rent.db"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: getEnvAsDuration("ALERT_CACHE_TTL", 10*time.Minute),
		},
		Alerts: AlertConfig{
			WindowDays: getEnvAsInt("ALERT_WINDOW_DAYS", rent.DefaultWindow),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", true),
			CronSpec: getEnv("ALERT_SWEEP_CRON", "0 8 * * *"),
		},
		Log: LogConfig{
			Level:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		},
	}

	mode, ok := rent.ParseWindowMode(getEnv("ALERT_WINDOW_MODE", string(rent.ModeDayOfMonth)))
	if !ok {
		return nil, fmt.Errorf("invalid ALERT_WINDOW_MODE %q (use %s or %s)",
			os.Getenv("ALERT_WINDOW_MODE"), rent.ModeDayOfMonth, rent.ModeCalendar)
	}
	cfg.Alerts.WindowMode = mode

	if cfg.Alerts.WindowDays < 0 {
		return nil, fmt.Errorf("invalid ALERT_WINDOW_DAYS %d: must not be negative", cfg.Alerts.WindowDays)
	}
	if _, err := cron.ParseStandard(cfg.Scheduler.CronSpec); err != nil {
		return nil, fmt.Errorf("invalid ALERT_SWEEP_CRON %q: %w", cfg.Scheduler.CronSpec, err)
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
