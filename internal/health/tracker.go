package health

import (
	"sort"
	"sync"
	"time"
)

// Status is the derived health of a provider
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

const (
	defaultDownStreak  = 3
	latencyHistorySize = 50
)

// Record is a point-in-time copy of a provider's counters
type Record struct {
	Name                string        `json:"name"`
	Priority            int           `json:"priority"`
	Enabled             bool          `json:"enabled"`
	Status              Status        `json:"status"`
	SuccessCount        int           `json:"success_count"`
	ErrorCount          int           `json:"error_count"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSuccess         *time.Time    `json:"last_success,omitempty"`
	LastErrorTime       *time.Time    `json:"last_error_time,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	LastLatency         time.Duration `json:"last_latency"`
	AvgLatency          time.Duration `json:"avg_latency"`
}

type entry struct {
	record    Record
	latencies []time.Duration
}

// Tracker keeps one health record per provider
type Tracker struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	downStreak int
	now        func() time.Time
}

// NewTracker creates a tracker. downStreak is the number of consecutive
// failures that forces a provider down regardless of its overall error rate;
// values below 1 use the default of 3.
func NewTracker(downStreak int) *Tracker {
	if downStreak < 1 {
		downStreak = defaultDownStreak
	}
	return &Tracker{
		entries:    make(map[string]*entry),
		downStreak: downStreak,
		now:        time.Now,
	}
}

// Register adds or updates a provider's static attributes without touching counters
func (t *Tracker) Register(name string, priority int, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.getOrCreate(name)
	e.record.Priority = priority
	e.record.Enabled = enabled
}

// SetEnabled flips the enabled flag of a registered provider
func (t *Tracker) SetEnabled(name string, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.getOrCreate(name).record.Enabled = enabled
}

// Remove drops a provider's record
func (t *Tracker) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, name)
}

// Record stores the outcome of one provider call. Unknown providers are registered on the fly.
func (t *Tracker) Record(name string, success bool, latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.getOrCreate(name)
	r := &e.record
	now := t.now()

	if success {
		r.SuccessCount++
		r.ConsecutiveFailures = 0
		r.LastSuccess = &now
	} else {
		r.ErrorCount++
		r.ConsecutiveFailures++
		r.LastErrorTime = &now
		if err != nil {
			r.LastError = err.Error()
		} else {
			r.LastError = "unknown error"
		}
	}

	total := r.SuccessCount + r.ErrorCount
	r.LastLatency = latency
	if total == 1 {
		r.AvgLatency = latency
	} else {
		r.AvgLatency = (r.AvgLatency*time.Duration(total-1) + latency) / time.Duration(total)
	}

	e.latencies = append(e.latencies, latency)
	if len(e.latencies) > latencyHistorySize {
		e.latencies = e.latencies[len(e.latencies)-latencyHistorySize:]
	}

	r.Status = t.deriveStatus(r, success)
}

func (t *Tracker) deriveStatus(r *Record, success bool) Status {
	total := float64(r.SuccessCount + r.ErrorCount)

	// a provider that just answered is never down
	if success {
		rate := float64(r.SuccessCount) / total
		if rate > 0.95 {
			return StatusHealthy
		}
		return StatusDegraded
	}

	if r.ConsecutiveFailures >= t.downStreak {
		return StatusDown
	}

	errorRate := float64(r.ErrorCount) / total
	switch {
	case errorRate > 0.5:
		return StatusDown
	case errorRate > 0.2:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Status returns the current status, or unknown for an untracked provider
func (t *Tracker) Status(name string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[name]
	if !ok {
		return StatusUnknown
	}
	return e.record.Status
}

// Get returns a copy of one provider's record
func (t *Tracker) Get(name string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[name]
	if !ok {
		return Record{}, false
	}
	return e.record, true
}

// Snapshot returns copies of all records keyed by provider name
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Record, len(t.entries))
	for name, e := range t.entries {
		out[name] = e.record
	}
	return out
}

// LatencyStats summarises the recent latency samples of one provider
type LatencyStats struct {
	Avg     time.Duration `json:"avg"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Samples int           `json:"samples"`
}

// LatencyComparison ranks providers by their recent average latency
type LatencyComparison struct {
	Providers map[string]LatencyStats `json:"providers"`
	Fastest   string                  `json:"fastest,omitempty"`
	Slowest   string                  `json:"slowest,omitempty"`
}

// CompareLatency builds a comparison from the bounded latency history
func (t *Tracker) CompareLatency() LatencyComparison {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cmp := LatencyComparison{Providers: make(map[string]LatencyStats)}

	names := make([]string, 0, len(t.entries))
	for name, e := range t.entries {
		if len(e.latencies) == 0 {
			continue
		}
		names = append(names, name)

		stats := LatencyStats{Min: e.latencies[0], Max: e.latencies[0], Samples: len(e.latencies)}
		var sum time.Duration
		for _, l := range e.latencies {
			sum += l
			if l < stats.Min {
				stats.Min = l
			}
			if l > stats.Max {
				stats.Max = l
			}
		}
		stats.Avg = sum / time.Duration(len(e.latencies))
		cmp.Providers[name] = stats
	}

	if len(names) == 0 {
		return cmp
	}

	// sorted names keep fastest/slowest deterministic on equal averages
	sort.Strings(names)
	cmp.Fastest, cmp.Slowest = names[0], names[0]
	for _, name := range names[1:] {
		avg := cmp.Providers[name].Avg
		if avg < cmp.Providers[cmp.Fastest].Avg {
			cmp.Fastest = name
		}
		if avg > cmp.Providers[cmp.Slowest].Avg {
			cmp.Slowest = name
		}
	}

	return cmp
}

func (t *Tracker) getOrCreate(name string) *entry {
	e, ok := t.entries[name]
	if !ok {
		e = &entry{record: Record{Name: name, Enabled: true, Status: StatusUnknown}}
		t.entries[name] = e
	}
	return e
}
