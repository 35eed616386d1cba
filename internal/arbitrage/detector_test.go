package arbitrage

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/accounts"
	"github.com/liamashdown/arbwatch/internal/odds"
)

type fakeLookup struct {
	scores map[string]float64
	err    error
}

func (f fakeLookup) GetHealth(ctx context.Context, bookmaker string, useCache bool) (accounts.Health, error) {
	if f.err != nil {
		return accounts.Health{}, f.err
	}
	score, ok := f.scores[bookmaker]
	if !ok {
		return accounts.Health{Bookmaker: bookmaker, Status: accounts.StatusUnknown, StealthScore: 1.0}, nil
	}
	return accounts.Health{Bookmaker: bookmaker, Status: "Healthy", StealthScore: score, Known: true}, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newDetector(cfg Config, lookup HealthLookup) *Detector {
	d := New(cfg, lookup, testLogger())
	d.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return d
}

func offer(outcome string, price float64, bookmaker string) odds.Offer {
	return odds.Offer{
		EventName:   "Arsenal vs Chelsea",
		Market:      "h2h",
		OutcomeName: outcome,
		Price:       odds.Decimal(price),
		Bookmaker:   bookmaker,
	}
}

func TestDetectArbitrageExistence(t *testing.T) {
	d := newDetector(DefaultConfig(), nil)

	opp := d.DetectArbitrage(context.Background(), []odds.Offer{
		offer("Home", 2.6, "A"),
		offer("Draw", 5.5, "B"),
		offer("Away", 2.6, "C"),
	})
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	expectedTotal := 1/2.6 + 1/5.5 + 1/2.6
	if math.Abs(opp.TotalImpliedProbability-expectedTotal) > 1e-9 {
		t.Errorf("TotalImpliedProbability = %v, expected %v", opp.TotalImpliedProbability, expectedTotal)
	}
	if opp.TotalImpliedProbability >= 1.0 {
		t.Error("total implied probability must be below 1")
	}
	expectedProfit := (1/expectedTotal - 1) * 100
	if math.Abs(opp.ProfitPercentage-expectedProfit) > 1e-9 {
		t.Errorf("ProfitPercentage = %v, expected %v", opp.ProfitPercentage, expectedProfit)
	}
	if len(opp.Outcomes) != 3 || len(opp.Bookmakers) != 3 {
		t.Errorf("unexpected outcomes %+v bookmakers %v", opp.Outcomes, opp.Bookmakers)
	}
	if opp.RiskLevel != RiskLow || len(opp.RiskWarnings) != 0 {
		t.Errorf("no lookup should mean Low risk without warnings, got %v %v", opp.RiskLevel, opp.RiskWarnings)
	}
	if opp.MarketAgeHours != nil {
		t.Error("market age should be absent without commence time")
	}
	if opp.ID == "" {
		t.Error("expected an opportunity ID")
	}
}

func TestDetectArbitrageNone(t *testing.T) {
	tests := []struct {
		name   string
		offers []odds.Offer
	}{
		{name: "fair book", offers: []odds.Offer{offer("Home", 2.0, "A"), offer("Away", 2.0, "A")}},
		{name: "overround", offers: []odds.Offer{offer("Home", 1.9, "A"), offer("Away", 1.9, "B")}},
		{name: "single outcome", offers: []odds.Offer{offer("Home", 5.0, "A"), offer("Home", 6.0, "B")}},
		{name: "single offer", offers: []odds.Offer{offer("Home", 5.0, "A")}},
		{name: "empty", offers: nil},
		{name: "missing odds", offers: []odds.Offer{offer("Home", 3.0, "A"), {OutcomeName: "Away", Bookmaker: "B"}}},
		{name: "odds at or below one", offers: []odds.Offer{offer("Home", 3.0, "A"), offer("Away", 1.0, "B")}},
	}

	d := newDetector(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if opp := d.DetectArbitrage(context.Background(), tt.offers); opp != nil {
				t.Errorf("expected no opportunity, got %+v", opp)
			}
		})
	}
}

func TestDetectArbitrageBestPrice(t *testing.T) {
	d := newDetector(Config{MinProfitPercentage: 0}, nil)

	opp := d.DetectArbitrage(context.Background(), []odds.Offer{
		offer("Home", 2.0, "A"),
		offer("Home", 2.2, "B"),
		offer("Away", 2.5, "C"),
	})
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	home := opp.Outcomes[0]
	if home.OutcomeName != "Home" || home.Odds != 2.2 || home.Bookmaker != "B" {
		t.Errorf("best Home pick = %+v, expected 2.2 @ B", home)
	}
}

func TestDetectArbitrageTieKeepsFirstSeen(t *testing.T) {
	d := newDetector(Config{MinProfitPercentage: 0}, nil)

	opp := d.DetectArbitrage(context.Background(), []odds.Offer{
		offer("Home", 2.2, "First"),
		offer("Home", 2.2, "Second"),
		offer("Away", 2.2, "Other"),
	})
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.Outcomes[0].Bookmaker != "First" {
		t.Errorf("tie kept %q, expected First", opp.Outcomes[0].Bookmaker)
	}
}

func TestDetectArbitrageMixedFormats(t *testing.T) {
	d := newDetector(Config{MinProfitPercentage: 0}, nil)

	opp := d.DetectArbitrage(context.Background(), []odds.Offer{
		{EventName: "E", OutcomeName: "Home", Price: odds.American(120), Bookmaker: "A"},
		{EventName: "E", OutcomeName: "Away", Price: odds.Fractional("6/5"), Bookmaker: "B"},
		{EventName: "E", OutcomeName: "Draw", Price: &odds.Price{Value: 9, Format: "malay"}, Bookmaker: "C"},
	})
	if opp == nil {
		t.Fatal("unsupported format on one offer must not discard the opportunity")
	}
	if len(opp.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(opp.Outcomes))
	}
	if opp.Outcomes[0].OriginalFormat != odds.FormatAmerican || opp.Outcomes[0].OriginalOdds.Value != 120 {
		t.Errorf("original price not kept: %+v", opp.Outcomes[0])
	}
	if math.Abs(opp.Outcomes[1].Odds-2.2) > 1e-9 {
		t.Errorf("fractional 6/5 normalized to %v, expected 2.2", opp.Outcomes[1].Odds)
	}
}

func TestMinimumProfitFilter(t *testing.T) {
	offers := []odds.Offer{offer("Home", 2.02, "A"), offer("Away", 2.02, "B")}

	tests := []struct {
		name     string
		min      float64
		expected bool
	}{
		{name: "high threshold filters", min: 5.0, expected: false},
		{name: "low threshold keeps", min: 0.1, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MinProfitPercentage = tt.min
			opp := newDetector(cfg, nil).DetectArbitrage(context.Background(), offers)
			if (opp != nil) != tt.expected {
				t.Errorf("opportunity found = %v, expected %v", opp != nil, tt.expected)
			}
		})
	}
}

func TestFindBestArbitragesRanking(t *testing.T) {
	event := func(name string, home, away float64) odds.Event {
		return odds.Event{EventName: name, Outcomes: []odds.Offer{
			{EventName: name, OutcomeName: "Home", Price: odds.Decimal(home), Bookmaker: "A"},
			{EventName: name, OutcomeName: "Away", Price: odds.Decimal(away), Bookmaker: "B"},
		}}
	}

	d := newDetector(DefaultConfig(), nil)
	found := d.FindBestArbitrages(context.Background(), []odds.Event{
		event("event3-first-in-input", 2.044, 2.044), // ~2.2%
		event("event2", 1.9, 1.9),                    // none
		event("event1", 2.09, 2.09),                  // ~4.5%
	})

	if len(found) != 2 {
		t.Fatalf("expected 2 opportunities, got %d", len(found))
	}
	if found[0].EventName != "event1" || found[1].EventName != "event3-first-in-input" {
		t.Errorf("order = [%s %s], expected [event1 event3-first-in-input]", found[0].EventName, found[1].EventName)
	}
	if math.Abs(found[0].ProfitPercentage-4.5) > 0.01 || math.Abs(found[1].ProfitPercentage-2.2) > 0.01 {
		t.Errorf("profits = %.3f, %.3f", found[0].ProfitPercentage, found[1].ProfitPercentage)
	}
}

func TestFindBestArbitragesStableTies(t *testing.T) {
	event := func(name string) odds.Event {
		return odds.Event{EventName: name, Outcomes: []odds.Offer{
			{EventName: name, OutcomeName: "Home", Price: odds.Decimal(2.1), Bookmaker: "A"},
			{EventName: name, OutcomeName: "Away", Price: odds.Decimal(2.1), Bookmaker: "B"},
		}}
	}

	d := newDetector(DefaultConfig(), nil)
	found := d.FindBestArbitrages(context.Background(), []odds.Event{event("x"), event("y"), event("z")})
	if len(found) != 3 || found[0].EventName != "x" || found[1].EventName != "y" || found[2].EventName != "z" {
		t.Errorf("equal profits should keep input order, got %+v", found)
	}

	if empty := d.FindBestArbitrages(context.Background(), nil); empty == nil || len(empty) != 0 {
		t.Error("expected empty non-nil result")
	}
}

func TestRiskEscalation(t *testing.T) {
	tests := []struct {
		name          string
		scores        map[string]float64
		lookupErr     error
		expectedLevel RiskLevel
		warningSubstr string
	}{
		{name: "critical score", scores: map[string]float64{"A": 0.15}, expectedLevel: RiskHigh, warningSubstr: "HIGH RISK: A has critical stealth score (0.15)"},
		{name: "low score", scores: map[string]float64{"B": 0.45}, expectedLevel: RiskMedium, warningSubstr: "low stealth scores"},
		{name: "critical beats low", scores: map[string]float64{"A": 0.4, "B": 0.1}, expectedLevel: RiskHigh, warningSubstr: "B has critical"},
		{name: "healthy accounts", scores: map[string]float64{"A": 0.9, "B": 0.8}, expectedLevel: RiskLow},
		{name: "unknown accounts", scores: nil, expectedLevel: RiskLow},
		{name: "lookup failure", lookupErr: errors.New("db down"), expectedLevel: RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDetector(DefaultConfig(), fakeLookup{scores: tt.scores, err: tt.lookupErr})
			opp := d.DetectArbitrage(context.Background(), []odds.Offer{
				offer("Home", 2.2, "A"),
				offer("Away", 2.2, "B"),
			})
			if opp == nil {
				t.Fatal("expected an opportunity")
			}
			if opp.RiskLevel != tt.expectedLevel {
				t.Errorf("RiskLevel = %v, expected %v", opp.RiskLevel, tt.expectedLevel)
			}
			if tt.warningSubstr == "" {
				if len(opp.RiskWarnings) != 0 {
					t.Errorf("expected no warnings, got %v", opp.RiskWarnings)
				}
				return
			}
			if !strings.Contains(strings.Join(opp.RiskWarnings, "\n"), tt.warningSubstr) {
				t.Errorf("warnings %v missing %q", opp.RiskWarnings, tt.warningSubstr)
			}
		})
	}
}

func TestMarketAge(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		commence      time.Time
		scores        map[string]float64
		expectedLevel RiskLevel
		expectedWarns int
		expectedAge   float64
	}{
		{name: "stale market", commence: now.Add(-30 * time.Hour), expectedLevel: RiskMedium, expectedWarns: 1, expectedAge: 30},
		{name: "future event", commence: now.Add(5 * time.Hour), expectedLevel: RiskLow, expectedWarns: 0, expectedAge: -5},
		{name: "recent market", commence: now.Add(-2 * time.Hour), expectedLevel: RiskLow, expectedWarns: 0, expectedAge: 2},
		{name: "stale with critical account", commence: now.Add(-48 * time.Hour), scores: map[string]float64{"A": 0.1}, expectedLevel: RiskHigh, expectedWarns: 2, expectedAge: 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lookup HealthLookup
			if tt.scores != nil {
				lookup = fakeLookup{scores: tt.scores}
			}
			d := newDetector(DefaultConfig(), lookup)

			ct := tt.commence
			offers := []odds.Offer{offer("Home", 2.2, "A"), offer("Away", 2.2, "B")}
			offers[0].CommenceTime = &ct

			opp := d.DetectArbitrage(context.Background(), offers)
			if opp == nil {
				t.Fatal("expected an opportunity")
			}
			if opp.MarketAgeHours == nil || math.Abs(*opp.MarketAgeHours-tt.expectedAge) > 1e-9 {
				t.Errorf("MarketAgeHours = %v, expected %v", opp.MarketAgeHours, tt.expectedAge)
			}
			if opp.RiskLevel != tt.expectedLevel {
				t.Errorf("RiskLevel = %v, expected %v", opp.RiskLevel, tt.expectedLevel)
			}
			if len(opp.RiskWarnings) != tt.expectedWarns {
				t.Errorf("warnings = %v, expected %d", opp.RiskWarnings, tt.expectedWarns)
			}
		})
	}
}

func TestStakeSplit(t *testing.T) {
	d := newDetector(DefaultConfig(), nil)
	opp := d.DetectArbitrage(context.Background(), []odds.Offer{
		offer("Home", 2.6, "A"),
		offer("Draw", 5.5, "B"),
		offer("Away", 2.6, "C"),
	})
	if opp == nil {
		t.Fatal("expected an opportunity")
	}

	stakes := StakeSplit(*opp, 100)
	sum := 0.0
	for i, s := range stakes {
		sum += s
		payout := s * opp.Outcomes[i].Odds
		if math.Abs(payout-100/opp.TotalImpliedProbability) > 1e-6 {
			t.Errorf("outcome %d payout %v differs from the guaranteed return", i, payout)
		}
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("stakes sum to %v, expected 100", sum)
	}
}
