package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// PriceFeedKey authenticates the external market price feed. Feed
	// endpoints return 503 until it is configured.
	PriceFeedKey string

	// Ledger
	// LedgerLockTimeout bounds how long a request waits for an asset's or
	// investor's lock before failing with LEDGER_BUSY.
	LedgerLockTimeout time.Duration
	// DividendWorkers bounds the dividend fan-out concurrency so assets
	// with many holders cannot exhaust database connections.
	DividendWorkers int
	// DividendCron is the cron expression for the dividend schedule runner.
	DividendCron string

	// Compliance
	// RequiredChecks is the base set of checks every investor must pass to
	// be cleared. CategoryChecks adds category-specific checks on top.
	RequiredChecks []string
	CategoryChecks map[string][]string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tessera"),
		DBPassword: getEnv("DB_PASSWORD", "tessera"),
		DBName:     getEnv("DB_NAME", "tessera"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		PriceFeedKey: getEnv("PRICE_FEED_KEY", ""),

		// Ledger
		LedgerLockTimeout: getEnvDuration("LEDGER_LOCK_TIMEOUT", 5*time.Second),
		DividendWorkers:   getEnvInt("DIVIDEND_WORKERS", 8),
		DividendCron:      getEnv("DIVIDEND_CRON", "@hourly"),

		// Compliance
		RequiredChecks: splitList(getEnv("COMPLIANCE_REQUIRED_CHECKS", "aml,kyc,cft,sanctions,pep")),
		CategoryChecks: parseCategoryChecks(getEnv("COMPLIANCE_CATEGORY_CHECKS",
			"fine_art:provenance;private_equity:accreditation")),
	}

	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour)

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// RecognizedChecks returns every check name accepted by the compliance
// engine: the base required set plus all category-specific checks.
func (c *Config) RecognizedChecks() map[string]bool {
	recognized := make(map[string]bool, len(c.RequiredChecks))
	for _, name := range c.RequiredChecks {
		recognized[name] = true
	}
	for _, names := range c.CategoryChecks {
		for _, name := range names {
			recognized[name] = true
		}
	}
	return recognized
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseCategoryChecks parses "category:check1,check2;category2:check3".
func parseCategoryChecks(raw string) map[string][]string {
	out := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			log.Printf("Warning: skipping malformed category checks entry '%s'\n", entry)
			continue
		}
		category := strings.TrimSpace(parts[0])
		checks := splitList(parts[1])
		if category != "" && len(checks) > 0 {
			out[category] = checks
		}
	}
	return out
}
