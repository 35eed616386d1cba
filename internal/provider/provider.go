package provider

import (
	"context"
	"time"

	"github.com/liamashdown/arbwatch/internal/odds"
)

// Provider supplies odds for a sport. Implementations must honour ctx cancellation.
type Provider interface {
	Name() string
	// Priority orders providers; lower values are queried and preferred first.
	Priority() int
	Enabled() bool
	FetchOdds(ctx context.Context, sport string) ([]odds.Event, error)
}

// QuotaReporter is implemented by rate-limited providers that expose their remaining allowance
type QuotaReporter interface {
	RemainingQuota() (int, bool)
	ResetTime() (time.Time, bool)
}

// Settings holds the attributes shared by every configured provider
type Settings struct {
	Name     string
	BaseURL  string
	APIKey   string
	Priority int
	Enabled  bool
	RPS      float64
	Timeout  time.Duration
	Regions  []string
	Markets  []string
}
