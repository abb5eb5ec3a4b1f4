package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port          string
	DatabasePath  string
	LogLevel      string
	StorageDriver string

	// HTTP settings
	AllowedOrigins    []string
	RateLimitInterval time.Duration
	RateLimitBurst    int

	// Market data settings
	QuoteBaseURL          string
	QuoteTimeout          time.Duration
	QuoteCacheExpiration  time.Duration
	QuoteRefreshSchedule  string
	QuoteFetchConcurrency int
	HistoryRange          string

	// Portfolio settings
	HistoryIntervalDays     int
	MaxPortfoliosPerAccount int
}

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = FromEnv()

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, Storage=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.StorageDriver, Cfg.DatabasePath)
}

// FromEnv builds an AppConfig from the current process environment.
func FromEnv() *AppConfig {
	storage := strings.ToLower(getEnv("STORAGE_DRIVER", StorageSQLite))
	if storage != StorageSQLite && storage != StorageMemory {
		log.Printf("Invalid STORAGE_DRIVER '%s', using default: %s", storage, StorageSQLite)
		storage = StorageSQLite
	}

	historyInterval := getEnvAsInt("HISTORY_INTERVAL_DAYS", 7)
	if historyInterval <= 0 {
		log.Printf("HISTORY_INTERVAL_DAYS must be positive, using default: 7")
		historyInterval = 7
	}

	return &AppConfig{
		Port:          getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DATABASE_PATH", "./dmtrade.db"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StorageDriver: storage,

		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:4200", "http://localhost:3000"}),
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),

		QuoteBaseURL:          strings.TrimRight(getEnv("QUOTE_BASE_URL", "https://query1.finance.yahoo.com"), "/"),
		QuoteTimeout:          getEnvAsDuration("QUOTE_TIMEOUT", 20*time.Second),
		QuoteCacheExpiration:  getEnvAsDuration("QUOTE_CACHE_EXPIRATION", 5*time.Minute),
		QuoteRefreshSchedule:  getEnv("QUOTE_REFRESH_SCHEDULE", "@every 15m"),
		QuoteFetchConcurrency: getEnvAsInt("QUOTE_FETCH_CONCURRENCY", 4),
		HistoryRange:          getEnv("HISTORY_RANGE", "5y"),

		HistoryIntervalDays:     historyInterval,
		MaxPortfoliosPerAccount: getEnvAsInt("MAX_PORTFOLIOS_PER_ACCOUNT", 10),
	}
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
