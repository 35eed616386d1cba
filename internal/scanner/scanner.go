package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/alerts"
	"github.com/liamashdown/arbwatch/internal/arbitrage"
	"github.com/liamashdown/arbwatch/internal/config"
	"github.com/liamashdown/arbwatch/internal/metrics"
	"github.com/liamashdown/arbwatch/internal/odds"
	"github.com/liamashdown/arbwatch/internal/publisher"
	"github.com/liamashdown/arbwatch/internal/storage"
)

const lastScanKey = "last_scan_ts"

// Fetcher returns merged odds for a sport along with per-provider errors and latency
type Fetcher interface {
	FetchOdds(ctx context.Context, sport string) ([]odds.Event, map[string]string, map[string]time.Duration)
}

// Detector finds opportunities in merged events
type Detector interface {
	FindBestArbitrages(ctx context.Context, events []odds.Event) []arbitrage.Opportunity
}

// Store persists opportunity snapshots and scan checkpoints
type Store interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	InsertOpportunity(ctx context.Context, rec *storage.OpportunityRecord) (string, error)
	GetLastOpportunityByFingerprint(ctx context.Context, fingerprint string) (*storage.OpportunityRecord, error)
}

// Snapshot is the result of the latest scan of one sport
type Snapshot struct {
	Sport         string                  `json:"sport"`
	Opportunities []arbitrage.Opportunity `json:"opportunities"`
	Errors        map[string]string       `json:"errors"`
	Latency       map[string]float64      `json:"latency_ms"`
	EventCount    int                     `json:"event_count"`
	ScannedAt     time.Time               `json:"scanned_at"`
}

// Scanner periodically turns provider odds into persisted, alerted and published opportunities
type Scanner struct {
	cfg         *config.Config
	fetcher     Fetcher
	detector    Detector
	store       Store
	alertSender alerts.Sender
	publisher   publisher.Publisher
	workerPool  chan struct{}
	log         *logrus.Logger
	now         func() time.Time

	mu     sync.RWMutex
	latest map[string]Snapshot
}

// New creates a scanner. pub may be nil when publishing is disabled.
func New(
	cfg *config.Config,
	fetcher Fetcher,
	detector Detector,
	store Store,
	alertSender alerts.Sender,
	pub publisher.Publisher,
	log *logrus.Logger,
) *Scanner {
	workers := cfg.ScanWorkers
	if workers < 1 {
		workers = 1
	}
	workerPool := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		workerPool <- struct{}{}
	}

	return &Scanner{
		cfg:         cfg,
		fetcher:     fetcher,
		detector:    detector,
		store:       store,
		alertSender: alertSender,
		publisher:   pub,
		workerPool:  workerPool,
		log:         log,
		now:         time.Now,
		latest:      make(map[string]Snapshot),
	}
}

// Scan scans every configured sport
func (s *Scanner) Scan(ctx context.Context) error {
	start := time.Now()

	var wg sync.WaitGroup
	for _, sport := range s.cfg.Sports {
		wg.Add(1)
		go func(sport string) {
			defer wg.Done()

			<-s.workerPool
			defer func() { s.workerPool <- struct{}{} }()

			if _, err := s.ScanSport(ctx, sport); err != nil {
				s.log.WithError(err).WithField("sport", sport).Error("Failed to scan sport")
			}
		}(sport)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		metrics.RecordScan(time.Since(start), "cancelled")
		return err
	}

	if err := s.store.SetState(ctx, lastScanKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.log.WithError(err).Error("Failed to update scan checkpoint")
	}
	metrics.RecordScan(time.Since(start), "success")
	return nil
}

// ScanSport fetches, detects and handles the opportunities of a single sport
func (s *Scanner) ScanSport(ctx context.Context, sport string) (Snapshot, error) {
	events, errs, latency := s.fetcher.FetchOdds(ctx, sport)
	opps := s.detector.FindBestArbitrages(ctx, events)

	snap := Snapshot{
		Sport:         sport,
		Opportunities: opps,
		Errors:        errs,
		Latency:       make(map[string]float64, len(latency)),
		EventCount:    len(events),
		ScannedAt:     s.now(),
	}
	for name, d := range latency {
		snap.Latency[name] = float64(d.Microseconds()) / 1000
	}

	s.mu.Lock()
	s.latest[sport] = snap
	s.mu.Unlock()

	best := 0.0
	for _, opp := range opps {
		metrics.OpportunitiesDetected.WithLabelValues(sport, string(opp.RiskLevel)).Inc()
		if opp.ProfitPercentage > best {
			best = opp.ProfitPercentage
		}
	}
	metrics.BestProfit.WithLabelValues(sport).Set(best)

	s.log.WithFields(logrus.Fields{
		"sport":         sport,
		"events":        len(events),
		"opportunities": len(opps),
		"provider_errs": len(errs),
	}).Info("Scanned sport")

	for _, opp := range opps {
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		if err := s.handleOpportunity(ctx, sport, opp); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"sport": sport,
				"event": opp.EventName,
			}).Error("Failed to handle opportunity")
		}
	}

	return snap, nil
}

func (s *Scanner) handleOpportunity(ctx context.Context, sport string, opp arbitrage.Opportunity) error {
	fingerprint := Fingerprint(opp)

	// Check cooldown
	last, err := s.store.GetLastOpportunityByFingerprint(ctx, fingerprint)
	if err != nil {
		s.log.WithError(err).Warn("Failed to get last opportunity")
	}
	if last != nil {
		cooldownSec := int64(s.cfg.AlertCooldownMins * 60)
		if s.now().Unix()-last.DetectedTS < cooldownSec {
			s.log.WithFields(logrus.Fields{
				"event":       opp.EventName,
				"fingerprint": fingerprint[:12],
			}).Debug("Opportunity suppressed (cooldown)")
			metrics.AlertsSuppressed.Inc()
			return nil
		}
	}

	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("marshal opportunity: %w", err)
	}

	rec := &storage.OpportunityRecord{
		ID:                      opp.ID,
		Sport:                   sport,
		EventName:               opp.EventName,
		Market:                  opp.Market,
		Fingerprint:             fingerprint,
		ProfitPercentage:        opp.ProfitPercentage,
		TotalImpliedProbability: opp.TotalImpliedProbability,
		RiskLevel:               string(opp.RiskLevel),
		Bookmakers:              strings.Join(opp.Bookmakers, ","),
		Payload:                 string(payload),
		DetectedTS:              opp.Timestamp.Unix(),
	}
	recordID, err := s.store.InsertOpportunity(ctx, rec)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	if opp.ProfitPercentage >= s.cfg.AlertMinProfit && s.alertSender != nil {
		s.sendAlert(ctx, sport, opp, recordID)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, sport, opp); err != nil {
			s.log.WithError(err).WithField("event", opp.EventName).Warn("Failed to publish opportunity")
		}
	}

	return nil
}

func (s *Scanner) sendAlert(ctx context.Context, sport string, opp arbitrage.Opportunity, recordID string) {
	payload := alerts.NewPayload(sport, opp, s.cfg.AlertBankroll, s.cfg.Environment)
	payload.RecordID = recordID

	status := "success"
	if err := s.alertSender.Send(ctx, payload); err != nil {
		status = "error"
		s.log.WithError(err).WithField("event", opp.EventName).Error("Failed to send alert")
	}
	metrics.RecordAlert(string(payload.Severity), status, "opportunity", false)
}

// Latest returns the most recent snapshot for sport
func (s *Scanner) Latest(sport string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[sport]
	return snap, ok
}

// LatestAll returns the most recent snapshot of every scanned sport, ordered by sport
func (s *Scanner) LatestAll() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.latest))
	for _, snap := range s.latest {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Sport < out[j].Sport })
	return out
}

// Fingerprint identifies an opportunity by event, market and the bookmaker chosen per outcome.
// Price drift on the same combination keeps the same fingerprint.
func Fingerprint(opp arbitrage.Opportunity) string {
	picks := make([]string, 0, len(opp.Outcomes))
	for _, o := range opp.Outcomes {
		picks = append(picks, o.OutcomeName+"@"+o.Bookmaker)
	}
	sort.Strings(picks)

	data := fmt.Sprintf("%s|%s|%s", opp.EventName, opp.Market, strings.Join(picks, ","))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
