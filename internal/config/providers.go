package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/liamashdown/arbwatch/internal/secrets"
)

const (
	KindOddsAPI = "oddsapi"
	KindFeed    = "feed"
)

// ProviderConfig declares one odds provider
type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Kind      string        `mapstructure:"kind"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Priority  int           `mapstructure:"priority"`
	Enabled   bool          `mapstructure:"enabled"`
	RPS       float64       `mapstructure:"rps"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Regions   []string      `mapstructure:"regions"`
	Markets   []string      `mapstructure:"markets"`

	// APIKey is resolved from APIKeyEnv through the secrets loader, never from the file
	APIKey string `mapstructure:"-"`
}

type providersFile struct {
	Providers []ProviderConfig `mapstructure:"providers"`
}

// LoadProviders reads provider declarations from a YAML file. A missing file yields no providers.
func LoadProviders(path string) ([]ProviderConfig, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("unmarshal providers file: %w", err)
	}

	// viper cannot default fields inside list entries
	raw, _ := v.Get("providers").([]interface{})
	for i := range file.Providers {
		p := &file.Providers[i]
		if !hasKey(raw, i, "enabled") {
			p.Enabled = true
		}
		if !hasKey(raw, i, "priority") {
			p.Priority = i + 1
		}
		if p.RPS <= 0 {
			p.RPS = 1
		}
		if p.APIKeyEnv != "" {
			p.APIKey = secrets.Optional(p.APIKeyEnv, "")
		}
	}

	return file.Providers, nil
}

func hasKey(raw []interface{}, index int, key string) bool {
	if index >= len(raw) {
		return false
	}
	m, ok := raw[index].(map[string]interface{})
	if !ok {
		return false
	}
	_, found := m[key]
	return found
}
