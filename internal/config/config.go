package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL    string
	StoreDriver    string
	MemorySeedFile string

	// Firebase
	FirebaseCredentialsPath string

	// Redis (delivery statistics)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Scheduler
	ScanIntervalSeconds int
	ScanTimeoutSeconds  int
	AlignToMinute       bool
	AlarmTimezone       string

	// WebSocket
	WSPingIntervalSeconds int
	WSWriteTimeoutSeconds int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: .env not found, reading process environment")
	}

	cfg := &Config{
		// Server
		Port:        getEnvWithDefault("PORT", "8998"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),

		// Database
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoreDriver:    getEnvWithDefault("STORE_DRIVER", StoreDriverPostgres),
		MemorySeedFile: os.Getenv("MEMORY_SEED_FILE"),

		// Firebase
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),

		// Redis
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Scheduler
		ScanIntervalSeconds: getEnvInt("SCAN_INTERVAL_SECONDS", 60),
		ScanTimeoutSeconds:  getEnvInt("SCAN_TIMEOUT_SECONDS", 20),
		AlignToMinute:       getEnvBool("ALIGN_TO_MINUTE", true),
		AlarmTimezone:       os.Getenv("ALARM_TIMEZONE"),

		// WebSocket
		WSPingIntervalSeconds: getEnvInt("WS_PING_INTERVAL_SECONDS", 30),
		WSWriteTimeoutSeconds: getEnvInt("WS_WRITE_TIMEOUT_SECONDS", 10),

		// Logging
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}

	if c.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("SCAN_INTERVAL_SECONDS must be positive")
	}
	if c.ScanTimeoutSeconds <= 0 || c.ScanTimeoutSeconds >= c.ScanIntervalSeconds {
		return fmt.Errorf("SCAN_TIMEOUT_SECONDS must be positive and shorter than the scan interval")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutSeconds) * time.Second
}

func (c *Config) WSPingInterval() time.Duration {
	return time.Duration(c.WSPingIntervalSeconds) * time.Second
}

func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutSeconds) * time.Second
}

// Location resolves ALARM_TIMEZONE; empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.AlarmTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.AlarmTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ALARM_TIMEZONE %q: %w", c.AlarmTimezone, err)
	}
	return loc, nil
}
