package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/metrics"
	"github.com/liamashdown/arbwatch/internal/storage"
)

// ErrAccountNotFound is returned by operations that require an existing account
var ErrAccountNotFound = errors.New("account not found")

// ErrInvalidAccount is returned when an account update fails validation
var ErrInvalidAccount = errors.New("invalid account")

// StatusUnknown is reported for bookmakers without a stored account
const StatusUnknown = "Unknown"

// Health is the read-only view of a bookmaker account used for risk grading
type Health struct {
	Bookmaker    string  `json:"bookmaker"`
	Status       string  `json:"status"`
	StealthScore float64 `json:"stealth_score"`
	Known        bool    `json:"known"`
}

// Store persists bookmaker accounts
type Store interface {
	GetAccount(ctx context.Context, name string) (*storage.BookmakerAccount, error)
	UpsertAccount(ctx context.Context, account *storage.BookmakerAccount) error
	ListAccounts(ctx context.Context) ([]storage.BookmakerAccount, error)
}

// Manager serves account health from a cache in front of the store
type Manager struct {
	store Store
	cache Cache
	log   *logrus.Logger
}

// NewManager creates a manager. A nil cache disables caching.
func NewManager(store Store, cache Cache, log *logrus.Logger) *Manager {
	return &Manager{store: store, cache: cache, log: log}
}

// GetHealth returns the health of a bookmaker. Unknown bookmakers get a
// perfect stealth score so they never raise risk on their own.
func (m *Manager) GetHealth(ctx context.Context, bookmaker string, useCache bool) (Health, error) {
	if useCache && m.cache != nil {
		h, ok, err := m.cache.Get(ctx, bookmaker)
		switch {
		case err != nil:
			metrics.AccountCacheLookups.WithLabelValues("error").Inc()
			m.log.WithError(err).WithField("bookmaker", bookmaker).Warn("Account cache read failed")
		case ok:
			metrics.AccountCacheLookups.WithLabelValues("hit").Inc()
			return h, nil
		default:
			metrics.AccountCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	account, err := m.store.GetAccount(ctx, bookmaker)
	if err != nil {
		return Health{}, fmt.Errorf("get account %s: %w", bookmaker, err)
	}

	h := Health{Bookmaker: bookmaker, Status: StatusUnknown, StealthScore: 1.0}
	if account != nil {
		h = fromRecord(account)
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, bookmaker, h); err != nil {
			m.log.WithError(err).WithField("bookmaker", bookmaker).Warn("Account cache write failed")
		}
	}

	return h, nil
}

// SetHealth stores an externally computed status and stealth score
func (m *Manager) SetHealth(ctx context.Context, bookmaker, status string, stealthScore float64) (Health, error) {
	bookmaker = strings.TrimSpace(bookmaker)
	if bookmaker == "" {
		return Health{}, fmt.Errorf("%w: bookmaker name is required", ErrInvalidAccount)
	}
	if stealthScore < 0 || stealthScore > 1 {
		return Health{}, fmt.Errorf("%w: stealth score must be between 0 and 1, got %v", ErrInvalidAccount, stealthScore)
	}
	if status == "" {
		status = "Healthy"
	}

	account := &storage.BookmakerAccount{Name: bookmaker, Status: status, StealthScore: stealthScore}
	if err := m.store.UpsertAccount(ctx, account); err != nil {
		return Health{}, fmt.Errorf("upsert account %s: %w", bookmaker, err)
	}

	if err := m.Invalidate(ctx, bookmaker); err != nil {
		m.log.WithError(err).WithField("bookmaker", bookmaker).Warn("Account cache invalidation failed")
	}

	return fromRecord(account), nil
}

// Lookup returns stored health without falling back to defaults
func (m *Manager) Lookup(ctx context.Context, bookmaker string) (Health, error) {
	account, err := m.store.GetAccount(ctx, bookmaker)
	if err != nil {
		return Health{}, fmt.Errorf("get account %s: %w", bookmaker, err)
	}
	if account == nil {
		return Health{}, ErrAccountNotFound
	}
	return fromRecord(account), nil
}

// List returns the health of every stored account
func (m *Manager) List(ctx context.Context) ([]Health, error) {
	records, err := m.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]Health, 0, len(records))
	for i := range records {
		out = append(out, fromRecord(&records[i]))
	}
	return out, nil
}

// Invalidate drops one cached entry, or all entries when bookmaker is empty
func (m *Manager) Invalidate(ctx context.Context, bookmaker string) error {
	if m.cache == nil {
		return nil
	}
	if bookmaker == "" {
		return m.cache.InvalidateAll(ctx)
	}
	return m.cache.Invalidate(ctx, bookmaker)
}

// Warm preloads the cache for the given bookmakers
func (m *Manager) Warm(ctx context.Context, bookmakers []string) {
	for _, b := range bookmakers {
		if _, err := m.GetHealth(ctx, b, false); err != nil {
			m.log.WithError(err).WithField("bookmaker", b).Warn("Failed to warm account cache")
		}
	}
}

func fromRecord(a *storage.BookmakerAccount) Health {
	return Health{
		Bookmaker:    a.Name,
		Status:       a.Status,
		StealthScore: a.StealthScore,
		Known:        true,
	}
}
