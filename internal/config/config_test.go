package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeProvidersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	return path
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("ODDS_API_KEY", "k-123")
	path := writeProvidersFile(t, `
providers:
  - name: the_odds_api
    kind: oddsapi
    api_key_env: ODDS_API_KEY
    priority: 0
    rps: 2
    timeout: 5s
    regions: [uk, eu]
  - name: scraper
    kind: feed
    base_url: http://scraper:9000
    enabled: false
`)

	providers, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("LoadProviders() error = %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}

	odds := providers[0]
	if odds.APIKey != "k-123" {
		t.Errorf("APIKey = %q, expected value from env", odds.APIKey)
	}
	if !odds.Enabled {
		t.Error("enabled should default to true")
	}
	if odds.Priority != 0 {
		t.Errorf("explicit priority 0 overwritten: %d", odds.Priority)
	}
	if odds.Timeout != 5*time.Second || odds.RPS != 2 {
		t.Errorf("timeout/rps = %v/%v", odds.Timeout, odds.RPS)
	}
	if len(odds.Regions) != 2 || odds.Regions[1] != "eu" {
		t.Errorf("Regions = %v", odds.Regions)
	}

	scraper := providers[1]
	if scraper.Enabled {
		t.Error("explicit enabled: false was ignored")
	}
	if scraper.Priority != 2 {
		t.Errorf("default priority = %d, expected position-based 2", scraper.Priority)
	}
	if scraper.RPS != 1 {
		t.Errorf("default RPS = %v, expected 1", scraper.RPS)
	}
}

func TestLoadProvidersMissingFile(t *testing.T) {
	providers, err := LoadProviders(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || providers != nil {
		t.Errorf("missing file should yield no providers, got %v, %v", providers, err)
	}
}

func validConfig() *Config {
	return &Config{
		DatabaseDriver:           "mysql",
		DatabaseDSN:              "dsn",
		Sports:                   []string{"soccer_epl"},
		ScanIntervalSec:          60,
		ProviderTimeout:          10 * time.Second,
		MinProfitPercentage:      1,
		CriticalStealthThreshold: 0.2,
		LowStealthThreshold:      0.5,
		AccountCache:             "memory",
		AlertMode:                "log",
		Providers: []ProviderConfig{
			{Name: "feed", Kind: KindFeed, BaseURL: "http://feed", Enabled: true},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		expected string
	}{
		{name: "valid", mutate: func(c *Config) {}, expected: ""},
		{name: "missing dsn", mutate: func(c *Config) { c.DatabaseDSN = "" }, expected: "DATABASE_DSN"},
		{name: "bad driver", mutate: func(c *Config) { c.DatabaseDriver = "oracle" }, expected: "DATABASE_DRIVER"},
		{name: "no sports", mutate: func(c *Config) { c.Sports = nil }, expected: "SPORTS"},
		{name: "thresholds inverted", mutate: func(c *Config) { c.LowStealthThreshold = 0.1 }, expected: "LOW_STEALTH_THRESHOLD"},
		{name: "bad cache", mutate: func(c *Config) { c.AccountCache = "disk" }, expected: "ACCOUNT_CACHE"},
		{name: "bad alert mode", mutate: func(c *Config) { c.AlertMode = "log,pager" }, expected: "ALERT_MODE"},
		{name: "discord without url", mutate: func(c *Config) { c.AlertMode = "discord" }, expected: "DISCORD_WEBHOOK_URL"},
		{name: "smtp without recipients", mutate: func(c *Config) { c.AlertMode = "smtp"; c.SMTPHost = "mail" }, expected: "SMTP_TO"},
		{name: "oddsapi without key", mutate: func(c *Config) {
			c.Providers = append(c.Providers, ProviderConfig{Name: "odds", Kind: KindOddsAPI, Enabled: true, APIKeyEnv: "ODDS_API_KEY"})
		}, expected: "api key is required"},
		{name: "disabled oddsapi without key", mutate: func(c *Config) {
			c.Providers = append(c.Providers, ProviderConfig{Name: "odds", Kind: KindOddsAPI})
		}, expected: ""},
		{name: "duplicate provider", mutate: func(c *Config) { c.Providers = append(c.Providers, c.Providers[0]) }, expected: "duplicate"},
		{name: "unknown kind", mutate: func(c *Config) { c.Providers[0].Kind = "ftp" }, expected: "invalid kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.expected == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.expected) {
				t.Errorf("Validate() error = %v, expected to contain %q", err, tt.expected)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PROVIDERS_FILE", writeProvidersFile(t, "providers:\n  - name: scraper\n    kind: feed\n    base_url: http://scraper\n"))
	t.Setenv("SPORTS", "soccer_epl, basketball_nba ,")
	t.Setenv("FAILOVER_ENABLED", "false")
	t.Setenv("MIN_PROFIT_PERCENTAGE", "2.5")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=db user=arb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Sports) != 2 || cfg.Sports[1] != "basketball_nba" {
		t.Errorf("Sports = %v", cfg.Sports)
	}
	if cfg.FailoverEnabled {
		t.Error("FAILOVER_ENABLED=false ignored")
	}
	if cfg.MinProfitPercentage != 2.5 {
		t.Errorf("MinProfitPercentage = %v", cfg.MinProfitPercentage)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "scraper" {
		t.Errorf("Providers = %+v", cfg.Providers)
	}
}
