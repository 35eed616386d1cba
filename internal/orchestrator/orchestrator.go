package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liamashdown/arbwatch/internal/health"
	"github.com/liamashdown/arbwatch/internal/metrics"
	"github.com/liamashdown/arbwatch/internal/odds"
	"github.com/liamashdown/arbwatch/internal/provider"
)

// ErrProviderTimeout is recorded when a provider does not answer within the call timeout
var ErrProviderTimeout = errors.New("provider call timed out")

const defaultCallTimeout = 10 * time.Second

// Options controls how a fetch is fanned out
type Options struct {
	// FailoverEnabled queries every enabled provider; when false only the
	// highest-priority provider is used.
	FailoverEnabled bool
	// RequireAllProviders discards merged events if any attempted provider failed.
	RequireAllProviders bool
	CallTimeout         time.Duration
	MaxConcurrency      int
	OnPrimaryChange     func(from, to string)
}

// Orchestrator queries a set of providers and merges their events
type Orchestrator struct {
	opts    Options
	tracker *health.Tracker
	log     *logrus.Logger

	mu          sync.RWMutex
	providers   []provider.Provider
	lastPrimary string
}

// New creates an orchestrator owning the given providers
func New(opts Options, tracker *health.Tracker, log *logrus.Logger, providers ...provider.Provider) *Orchestrator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if tracker == nil {
		tracker = health.NewTracker(0)
	}

	o := &Orchestrator{
		opts:    opts,
		tracker: tracker,
		log:     log,
	}
	for _, p := range providers {
		o.AddProvider(p)
	}
	return o
}

// AddProvider registers a provider, replacing any provider with the same name
func (o *Orchestrator) AddProvider(p provider.Provider) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, existing := range o.providers {
		if existing.Name() == p.Name() {
			o.providers[i] = p
			o.tracker.Register(p.Name(), p.Priority(), p.Enabled())
			return
		}
	}
	o.providers = append(o.providers, p)
	o.tracker.Register(p.Name(), p.Priority(), p.Enabled())
}

// RemoveProvider drops a provider and its health record
func (o *Orchestrator) RemoveProvider(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, p := range o.providers {
		if p.Name() == name {
			o.providers = append(o.providers[:i:i], o.providers[i+1:]...)
			o.tracker.Remove(name)
			return true
		}
	}
	return false
}

// selectProviders returns enabled providers sorted by priority
func (o *Orchestrator) selectProviders() []provider.Provider {
	o.mu.RLock()
	defer o.mu.RUnlock()

	enabled := make([]provider.Provider, 0, len(o.providers))
	for _, p := range o.providers {
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority() < enabled[j].Priority()
	})

	if !o.opts.FailoverEnabled && len(enabled) > 1 {
		enabled = enabled[:1]
	}
	return enabled
}

type providerResult struct {
	name    string
	events  []odds.Event
	err     error
	latency time.Duration
}

// FetchOdds queries enabled providers concurrently and merges their events.
// Provider failures are reported in the errors map and never abort the batch.
func (o *Orchestrator) FetchOdds(ctx context.Context, sport string) ([]odds.Event, map[string]string, map[string]time.Duration) {
	selected := o.selectProviders()

	errs := make(map[string]string)
	latency := make(map[string]time.Duration)
	if len(selected) == 0 {
		o.log.WithField("sport", sport).Warn("No enabled providers configured")
		return []odds.Event{}, errs, latency
	}

	results := make([]providerResult, len(selected))

	var g errgroup.Group
	if o.opts.MaxConcurrency > 0 {
		g.SetLimit(o.opts.MaxConcurrency)
	}
	for i, p := range selected {
		i, p := i, p
		g.Go(func() error {
			results[i] = o.callProvider(ctx, p, sport)
			return nil
		})
	}
	_ = g.Wait()

	successful := make([]providerResult, 0, len(results))
	for _, r := range results {
		latency[r.name] = r.latency
		if r.err != nil {
			errs[r.name] = r.err.Error()
			continue
		}
		successful = append(successful, r)
	}

	o.checkPrimary()

	if o.opts.RequireAllProviders && len(errs) > 0 {
		o.log.WithFields(logrus.Fields{
			"sport":  sport,
			"failed": len(errs),
		}).Warn("Discarding merged events, not all providers succeeded")
		return []odds.Event{}, errs, latency
	}

	events := merge(successful)
	metrics.EventsMerged.WithLabelValues(sport).Add(float64(len(events)))

	o.log.WithFields(logrus.Fields{
		"sport":     sport,
		"providers": len(selected),
		"failed":    len(errs),
		"events":    len(events),
	}).Debug("Fetched odds")

	return events, errs, latency
}

// callProvider runs one provider call under its own deadline. A provider that ignores
// ctx is abandoned once the deadline passes.
func (o *Orchestrator) callProvider(ctx context.Context, p provider.Provider, sport string) providerResult {
	name := p.Name()
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	type outcome struct {
		events []odds.Event
		err    error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		events, err := p.FetchOdds(callCtx, sport)
		done <- outcome{events: events, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = outcome{err: fmt.Errorf("%w after %s: %v", ErrProviderTimeout, o.opts.CallTimeout, callCtx.Err())}
	}
	elapsed := time.Since(start)

	status := "success"
	if res.err != nil {
		status = "error"
		if errors.Is(res.err, ErrProviderTimeout) || errors.Is(res.err, context.DeadlineExceeded) {
			status = "timeout"
		}
		o.log.WithError(res.err).WithFields(logrus.Fields{
			"provider": name,
			"sport":    sport,
		}).Warn("Provider failed")
	}

	o.tracker.Record(name, res.err == nil, elapsed, res.err)
	metrics.RecordProviderRequest(name, elapsed, status)
	if qr, ok := p.(provider.QuotaReporter); ok {
		if remaining, known := qr.RemainingQuota(); known {
			metrics.ProviderQuotaRemaining.WithLabelValues(name).Set(float64(remaining))
		}
	}

	return providerResult{name: name, events: res.events, err: res.err, latency: elapsed}
}

// checkPrimary detects a change of primary provider across fetches
func (o *Orchestrator) checkPrimary() {
	current, _ := o.Primary()

	o.mu.Lock()
	previous := o.lastPrimary
	o.lastPrimary = current
	o.mu.Unlock()

	if previous == "" || previous == current {
		return
	}

	o.log.WithFields(logrus.Fields{
		"from": previous,
		"to":   current,
	}).Warn("Primary provider changed")
	metrics.ProviderFailovers.Inc()
	if o.opts.OnPrimaryChange != nil {
		o.opts.OnPrimaryChange(previous, current)
	}
}
