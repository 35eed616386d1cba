package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket shared by all calls of one provider client
type Limiter struct {
	rate       float64 // tokens per second
	tokens     float64
	burst      float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// New creates a limiter refilling at rps tokens per second. burst caps the
// bucket; values below 1 fall back to max(rps, 1).
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 1.0
	}
	b := float64(burst)
	if b < 1 {
		b = rps
		if b < 1 {
			b = 1
		}
	}
	return &Limiter{
		rate:       rps,
		tokens:     b,
		burst:      b,
		lastUpdate: time.Now(),
	}
}

// Allow takes a token if one is available without blocking
func (l *Limiter) Allow() bool {
	_, ok := l.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token, or reports how long until one is due
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.lastUpdate).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastUpdate = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return 0, true
	}

	missing := 1.0 - l.tokens
	return time.Duration(missing / l.rate * float64(time.Second)), false
}
