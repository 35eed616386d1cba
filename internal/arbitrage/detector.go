package arbitrage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/accounts"
	"github.com/liamashdown/arbwatch/internal/metrics"
	"github.com/liamashdown/arbwatch/internal/odds"
)

// RiskLevel grades how likely an opportunity is to fail in practice
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// HealthLookup resolves the account health of a bookmaker
type HealthLookup interface {
	GetHealth(ctx context.Context, bookmaker string, useCache bool) (accounts.Health, error)
}

// Config holds detection thresholds
type Config struct {
	MinProfitPercentage      float64
	CriticalStealthThreshold float64
	LowStealthThreshold      float64
	MaxMarketAgeHours        float64
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		MinProfitPercentage:      1.0,
		CriticalStealthThreshold: 0.2,
		LowStealthThreshold:      0.5,
		MaxMarketAgeHours:        24,
	}
}

// OutcomePick is the best price kept for one outcome
type OutcomePick struct {
	OutcomeName    string      `json:"outcome_name"`
	Odds           float64     `json:"odds"`
	OriginalOdds   odds.Price  `json:"original_odds"`
	OriginalFormat odds.Format `json:"original_format"`
	Bookmaker      string      `json:"bookmaker"`
}

// Opportunity is an immutable detection result
type Opportunity struct {
	ID                      string        `json:"id"`
	EventName               string        `json:"event_name"`
	Market                  string        `json:"market"`
	Outcomes                []OutcomePick `json:"outcomes"`
	TotalImpliedProbability float64       `json:"total_implied_probability"`
	ProfitPercentage        float64       `json:"profit_percentage"`
	Bookmakers              []string      `json:"bookmakers"`
	Timestamp               time.Time     `json:"timestamp"`
	RiskLevel               RiskLevel     `json:"risk_level"`
	RiskWarnings            []string      `json:"risk_warnings"`
	MarketAgeHours          *float64      `json:"market_age_hours,omitempty"`
}

// Detector finds arbitrage across offers. It keeps no state between calls.
type Detector struct {
	cfg    Config
	lookup HealthLookup
	log    *logrus.Logger
	now    func() time.Time
}

// New creates a detector. lookup may be nil, in which case risk stays Low.
func New(cfg Config, lookup HealthLookup, log *logrus.Logger) *Detector {
	return &Detector{cfg: cfg, lookup: lookup, log: log, now: time.Now}
}

// Config returns the thresholds in use
func (d *Detector) Config() Config {
	return d.cfg
}

// DetectArbitrage returns the opportunity formed by the best price per outcome,
// or nil when the offers do not form one.
func (d *Detector) DetectArbitrage(ctx context.Context, offers []odds.Offer) *Opportunity {
	if len(offers) < 2 {
		return nil
	}

	groups := make(map[string]int)
	var picks []OutcomePick

	for _, o := range offers {
		if o.Price == nil {
			metrics.OffersSkipped.WithLabelValues("missing").Inc()
			continue
		}

		dec, err := odds.NormalizeToDecimal(*o.Price)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, odds.ErrUnsupportedFormat) {
				reason = "unsupported_format"
			}
			metrics.OffersSkipped.WithLabelValues(reason).Inc()
			d.log.WithError(err).WithFields(logrus.Fields{
				"event":     o.EventName,
				"outcome":   o.OutcomeName,
				"bookmaker": o.Bookmaker,
			}).Debug("Skipping offer")
			continue
		}
		if !odds.ValidDecimal(dec) {
			metrics.OffersSkipped.WithLabelValues("invalid").Inc()
			continue
		}

		bookmaker := o.Bookmaker
		if bookmaker == "" {
			bookmaker = "Unknown"
		}
		pick := OutcomePick{
			OutcomeName:    o.OutcomeName,
			Odds:           dec,
			OriginalOdds:   *o.Price,
			OriginalFormat: o.Price.Format,
			Bookmaker:      bookmaker,
		}

		i, seen := groups[o.OutcomeName]
		if !seen {
			groups[o.OutcomeName] = len(picks)
			picks = append(picks, pick)
			continue
		}
		// strictly greater: equal prices keep the first offer seen
		if dec > picks[i].Odds {
			picks[i] = pick
		}
	}

	if len(picks) < 2 {
		return nil
	}

	total := 0.0
	for _, p := range picks {
		total += odds.ImpliedProbability(p.Odds)
	}
	if total >= 1.0 {
		return nil
	}

	profit := (1.0/total - 1.0) * 100
	if profit < d.cfg.MinProfitPercentage {
		return nil
	}

	now := d.now()
	first := offers[0]
	eventName := first.EventName
	if eventName == "" {
		eventName = "Unknown Event"
	}
	market := first.Market
	if market == "" {
		market = "Match Result"
	}

	var age *float64
	if first.CommenceTime != nil {
		h := now.Sub(*first.CommenceTime).Hours()
		age = &h
	}

	bookmakers := distinctBookmakers(picks)
	level, warnings := d.EvaluateRisk(ctx, bookmakers, age)

	return &Opportunity{
		ID:                      uuid.NewString(),
		EventName:               eventName,
		Market:                  market,
		Outcomes:                picks,
		TotalImpliedProbability: total,
		ProfitPercentage:        profit,
		Bookmakers:              bookmakers,
		Timestamp:               now,
		RiskLevel:               level,
		RiskWarnings:            warnings,
		MarketAgeHours:          age,
	}
}

// FindBestArbitrages runs detection for each event and returns the hits by profit, highest first
func (d *Detector) FindBestArbitrages(ctx context.Context, events []odds.Event) []Opportunity {
	found := make([]Opportunity, 0)
	for _, ev := range events {
		if opp := d.DetectArbitrage(ctx, ev.Outcomes); opp != nil {
			found = append(found, *opp)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ProfitPercentage > found[j].ProfitPercentage
	})
	return found
}

func distinctBookmakers(picks []OutcomePick) []string {
	seen := make(map[string]bool, len(picks))
	out := make([]string, 0, len(picks))
	for _, p := range picks {
		if !seen[p.Bookmaker] {
			seen[p.Bookmaker] = true
			out = append(out, p.Bookmaker)
		}
	}
	sort.Strings(out)
	return out
}
