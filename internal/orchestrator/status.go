package orchestrator

import (
	"sort"
	"time"

	"github.com/liamashdown/arbwatch/internal/health"
	"github.com/liamashdown/arbwatch/internal/provider"
)

// ProviderInfo describes a configured provider for display
type ProviderInfo struct {
	Name           string        `json:"name"`
	Priority       int           `json:"priority"`
	Enabled        bool          `json:"enabled"`
	Health         health.Record `json:"health"`
	RemainingQuota *int          `json:"remaining_quota,omitempty"`
	QuotaResetAt   *time.Time    `json:"quota_reset_at,omitempty"`
}

// ProviderStatus returns the health record of every registered provider
func (o *Orchestrator) ProviderStatus() map[string]health.Record {
	return o.tracker.Snapshot()
}

// CompareLatency summarises recent provider latencies
func (o *Orchestrator) CompareLatency() health.LatencyComparison {
	return o.tracker.CompareLatency()
}

func statusRank(s health.Status) int {
	switch s {
	case health.StatusHealthy, health.StatusUnknown:
		return 0
	case health.StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Primary returns the enabled provider with the best status, lowest priority first on ties
func (o *Orchestrator) Primary() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	best := ""
	bestRank, bestPriority := 0, 0
	for _, p := range o.providers {
		if !p.Enabled() {
			continue
		}
		rank := statusRank(o.tracker.Status(p.Name()))
		if best == "" || rank < bestRank || (rank == bestRank && p.Priority() < bestPriority) {
			best, bestRank, bestPriority = p.Name(), rank, p.Priority()
		}
	}
	return best, best != ""
}

// Providers lists configured providers in priority order
func (o *Orchestrator) Providers() []ProviderInfo {
	o.mu.RLock()
	providers := append([]provider.Provider(nil), o.providers...)
	o.mu.RUnlock()

	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		info := ProviderInfo{Name: p.Name(), Priority: p.Priority(), Enabled: p.Enabled()}
		if rec, ok := o.tracker.Get(p.Name()); ok {
			info.Health = rec
		}
		if qr, ok := p.(provider.QuotaReporter); ok {
			if n, known := qr.RemainingQuota(); known {
				info.RemainingQuota = &n
			}
			if t, known := qr.ResetTime(); known {
				info.QuotaResetAt = &t
			}
		}
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
