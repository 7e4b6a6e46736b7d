package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	ReportsDir   string
	LogLevel     string
	LogFile      string
	Timezone     string // IANA name, KST for the Korean market
	Port         int
	DevMode      bool

	// Infomax vendor API
	InfomaxBaseURL string
	InfomaxAPIKey  string
	RatePerMinute  int           // Shared call budget across all workers
	MaxRetries     int
	RetryWait      time.Duration
	HTTPTimeout    time.Duration

	// Daily update tuning
	MaxWorkers int
	BatchSize  int

	// Anomaly thresholds (empirical, tunable)
	PriceMoveThreshold float64 // fraction, e.g. 0.295
	LargeNetFlowKRW    float64 // absolute net-buy sum, e.g. 5e10
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: getEnv("DATABASE_PATH", "./data/korea_stock.db"),
		ReportsDir:   getEnv("REPORTS_DIR", "./reports"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
		Timezone:     getEnv("TZ_NAME", "Asia/Seoul"),
		Port:         getEnvAsInt("PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),

		InfomaxBaseURL: getEnv("INFOMAX_BASE_URL", "https://api.infomax.co.kr"),
		InfomaxAPIKey:  getEnv("INFOMAX_API_KEY", ""),
		RatePerMinute:  getEnvAsInt("RATE_PER_MINUTE", 60),
		MaxRetries:     getEnvAsInt("COLLECTION_RETRY_COUNT", 3),
		RetryWait:      getEnvAsDuration("RETRY_WAIT", 5*time.Second),
		HTTPTimeout:    getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		MaxWorkers: getEnvAsInt("MAX_WORKERS", 4),
		BatchSize:  getEnvAsInt("BATCH_SIZE", 500),

		PriceMoveThreshold: getEnvAsFloat("PRICE_MOVE_THRESHOLD", 0.295),
		LargeNetFlowKRW:    getEnvAsFloat("LARGE_NET_FLOW_KRW", 5e10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural configuration. Vendor credentials are checked
// separately (ValidateCredentials) so read-only commands can run without them.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1, got %d", c.MaxWorkers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.RatePerMinute < 1 {
		return fmt.Errorf("RATE_PER_MINUTE must be at least 1, got %d", c.RatePerMinute)
	}
	return nil
}

// ValidateCredentials checks that vendor API credentials are present.
func (c *Config) ValidateCredentials() error {
	if c.InfomaxAPIKey == "" {
		return fmt.Errorf("INFOMAX_API_KEY is required")
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
