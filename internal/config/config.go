package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/liamashdown/arbwatch/internal/secrets"
)

// Config holds all configuration for the application
type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database
	DatabaseDriver      string // mysql or postgres
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Scanning
	Sports          []string
	ScanIntervalSec int
	ScanWorkers     int

	// Orchestration
	ProvidersFile        string
	Providers            []ProviderConfig
	ProviderTimeout      time.Duration
	FailoverEnabled      bool
	RequireAllProviders  bool
	MaxConcurrentFetches int
	HealthDownStreak     int

	// Detection
	MinProfitPercentage      float64
	CriticalStealthThreshold float64
	LowStealthThreshold      float64
	MaxMarketAgeHours        float64

	// Account health cache
	AccountCache    string // memory or redis
	AccountCacheTTL time.Duration

	// Redis
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisStreamPrefix string
	PublishEnabled    bool

	// Alerting
	AlertMode         string // comma-separated: log, discord, smtp
	AlertCooldownMins int
	AlertMinProfit    float64
	AlertBankroll     float64
	DiscordWebURL     string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPFrom          string
	SMTPTo            []string

	// HTTP
	HTTPAddr           string
	CORSAllowedOrigins []string
}

// Load reads configuration from the environment (and .env when present),
// then the provider declarations file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:              getEnv("ENVIRONMENT", "production"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:           getEnv("DATABASE_DRIVER", "mysql"),
		DatabaseDSN:              secrets.Optional("DATABASE_DSN", "arbwatch:arbwatch@tcp(mysql:3306)/arbwatch?parseTime=true"),
		DatabaseMaxConns:         getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMaxIdleTime:      time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		Sports:                   ParseCSV(getEnv("SPORTS", "soccer_epl")),
		ScanIntervalSec:          getEnvInt("SCAN_INTERVAL_SECONDS", 60),
		ScanWorkers:              getEnvInt("SCAN_WORKERS", 2),
		ProvidersFile:            getEnv("PROVIDERS_FILE", "providers.yaml"),
		ProviderTimeout:          time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 10)) * time.Second,
		FailoverEnabled:          getEnvBool("FAILOVER_ENABLED", true),
		RequireAllProviders:      getEnvBool("REQUIRE_ALL_PROVIDERS", false),
		MaxConcurrentFetches:     getEnvInt("MAX_CONCURRENT_FETCHES", 4),
		HealthDownStreak:         getEnvInt("HEALTH_DOWN_STREAK", 3),
		MinProfitPercentage:      getEnvFloat("MIN_PROFIT_PERCENTAGE", 1.0),
		CriticalStealthThreshold: getEnvFloat("CRITICAL_STEALTH_THRESHOLD", 0.2),
		LowStealthThreshold:      getEnvFloat("LOW_STEALTH_THRESHOLD", 0.5),
		MaxMarketAgeHours:        getEnvFloat("MAX_MARKET_AGE_HOURS", 24),
		AccountCache:             getEnv("ACCOUNT_CACHE", "memory"),
		AccountCacheTTL:          time.Duration(getEnvInt("ACCOUNT_CACHE_TTL_SECONDS", 60)) * time.Second,
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            secrets.Optional("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		RedisStreamPrefix:        getEnv("REDIS_STREAM_PREFIX", "opportunities.detected"),
		PublishEnabled:           getEnvBool("PUBLISH_ENABLED", false),
		AlertMode:                getEnv("ALERT_MODE", "log"),
		AlertCooldownMins:        getEnvInt("ALERT_COOLDOWN_MINS", 15),
		AlertMinProfit:           getEnvFloat("ALERT_MIN_PROFIT", 1.0),
		AlertBankroll:            getEnvFloat("ALERT_BANKROLL", 100),
		DiscordWebURL:            secrets.Optional("DISCORD_WEBHOOK_URL", ""),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 getEnvInt("SMTP_PORT", 587),
		SMTPUser:                 getEnv("SMTP_USER", ""),
		SMTPPassword:             secrets.Optional("SMTP_PASSWORD", ""),
		SMTPFrom:                 getEnv("SMTP_FROM", "arbwatch@example.com"),
		SMTPTo:                   ParseCSV(getEnv("SMTP_TO", "")),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins:       ParseCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	providers, err := LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required settings and ranges
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}

	switch c.DatabaseDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be mysql or postgres)", c.DatabaseDriver)
	}

	if len(c.Sports) == 0 {
		return fmt.Errorf("SPORTS must list at least one sport")
	}
	if c.ScanIntervalSec < 1 {
		return fmt.Errorf("SCAN_INTERVAL_SECONDS must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	if c.MinProfitPercentage < 0 {
		return fmt.Errorf("MIN_PROFIT_PERCENTAGE must not be negative")
	}
	if c.CriticalStealthThreshold < 0 || c.CriticalStealthThreshold > 1 {
		return fmt.Errorf("CRITICAL_STEALTH_THRESHOLD must be between 0 and 1")
	}
	if c.LowStealthThreshold < c.CriticalStealthThreshold || c.LowStealthThreshold > 1 {
		return fmt.Errorf("LOW_STEALTH_THRESHOLD must be between CRITICAL_STEALTH_THRESHOLD and 1")
	}

	switch c.AccountCache {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid ACCOUNT_CACHE: %s (must be memory or redis)", c.AccountCache)
	}
	if (c.AccountCache == "redis" || c.PublishEnabled) && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when redis cache or publishing is enabled")
	}

	hasDiscord := false
	hasSMTP := false
	for _, mode := range ParseCSV(c.AlertMode) {
		switch mode {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && c.DiscordWebURL == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required when discord is in ALERT_MODE")
	}
	if hasSMTP && (c.SMTPHost == "" || len(c.SMTPTo) == 0) {
		return fmt.Errorf("SMTP_HOST and SMTP_TO are required when smtp is in ALERT_MODE")
	}

	return c.validateProviders()
}

func (c *Config) validateProviders() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindOddsAPI:
			if p.Enabled && p.APIKey == "" {
				return fmt.Errorf("provider %s: api key is required (set %s)", p.Name, p.APIKeyEnv)
			}
		case KindFeed:
			if p.BaseURL == "" {
				return fmt.Errorf("provider %s: base_url is required for feed providers", p.Name)
			}
		default:
			return fmt.Errorf("provider %s: invalid kind %q (must be %s or %s)", p.Name, p.Kind, KindOddsAPI, KindFeed)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// ParseCSV splits a comma-separated list, dropping blanks
func ParseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
