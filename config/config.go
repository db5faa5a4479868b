// Package config loads engine configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Broker API
	BrokerBaseURL string
	BrokerFeedURL string
	APIKey        string
	AccountID     string
	Exchange      string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Universe
	UniversePath string // empty: built-in list

	// Scan pace
	ScanWorkers   int
	ScanBatchSize int
	ItemDelay     time.Duration
	BatchDelay    time.Duration
	HistoryYears  int

	// Trading
	AutoTrade       bool
	RelaxedSignals  bool // emit WATCHLIST verdicts (advisory scans)
	MonitorInterval time.Duration

	// Notifications
	TelegramToken  string
	TelegramChatID int64
	WebhookURL     string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first; missing files are fine.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	return &Config{
		BrokerBaseURL: mustEnv("BROKER_BASE_URL"),
		BrokerFeedURL: getEnv("BROKER_FEED_URL", ""),
		APIKey:        mustEnv("BROKER_API_KEY"),
		AccountID:     mustEnv("ACCOUNT_ID"),
		Exchange:      getEnv("EXCHANGE", "NSE"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/engine.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		UniversePath: getEnv("UNIVERSE_PATH", ""),

		ScanWorkers:   getEnvInt("SCAN_WORKERS", 4),
		ScanBatchSize: getEnvInt("SCAN_BATCH_SIZE", 10),
		ItemDelay:     getEnvDuration("SCAN_ITEM_DELAY", 200*time.Millisecond),
		BatchDelay:    getEnvDuration("SCAN_BATCH_DELAY", 2*time.Second),
		HistoryYears:  getEnvInt("HISTORY_YEARS", 2),

		AutoTrade:       getEnvBool("AUTO_TRADE", false),
		RelaxedSignals:  getEnvBool("RELAXED_SIGNALS", false),
		MonitorInterval: getEnvDuration("MONITOR_INTERVAL", 5*time.Minute),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
