package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/arbitrage"
)

func sampleOpportunity(profit float64, risk arbitrage.RiskLevel) arbitrage.Opportunity {
	age := 30.0
	return arbitrage.Opportunity{
		EventName: "EPL - Arsenal vs Chelsea",
		Market:    "h2h",
		Outcomes: []arbitrage.OutcomePick{
			{OutcomeName: "Arsenal", Odds: 2.6, Bookmaker: "Bet365"},
			{OutcomeName: "Draw", Odds: 5.5, Bookmaker: "Unibet"},
			{OutcomeName: "Chelsea", Odds: 2.6, Bookmaker: "Betfair"},
		},
		TotalImpliedProbability: 1/2.6 + 1/5.5 + 1/2.6,
		ProfitPercentage:        profit,
		Bookmakers:              []string{"Bet365", "Betfair", "Unibet"},
		Timestamp:               time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		RiskLevel:               risk,
		RiskWarnings:            []string{"Market age: 30.0 hours. Opportunities on old markets may be errors or have stale odds."},
		MarketAgeHours:          &age,
	}
}

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		name     string
		profit   float64
		risk     arbitrage.RiskLevel
		expected Severity
	}{
		{name: "big low-risk", profit: 4.0, risk: arbitrage.RiskLow, expected: SeverityAlert},
		{name: "big medium-risk", profit: 4.0, risk: arbitrage.RiskMedium, expected: SeverityWarn},
		{name: "modest", profit: 1.6, risk: arbitrage.RiskLow, expected: SeverityWarn},
		{name: "small", profit: 1.1, risk: arbitrage.RiskLow, expected: SeverityInfo},
		{name: "high risk", profit: 9.0, risk: arbitrage.RiskHigh, expected: SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineSeverity(sampleOpportunity(tt.profit, tt.risk)); got != tt.expected {
				t.Errorf("DetermineSeverity() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestNewPayloadStakes(t *testing.T) {
	p := NewPayload("soccer_epl", sampleOpportunity(5.1, arbitrage.RiskLow), 100, "test")
	if len(p.Stakes) != 3 {
		t.Fatalf("expected 3 stakes, got %d", len(p.Stakes))
	}
	sum := 0.0
	for _, s := range p.Stakes {
		sum += s
	}
	if sum < 99.999 || sum > 100.001 {
		t.Errorf("stakes sum to %v, expected 100", sum)
	}
}

func TestDiscordSender(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	payload := NewPayload("soccer_epl", sampleOpportunity(5.1, arbitrage.RiskMedium), 100, "test")
	if err := s.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	embeds, _ := received["embeds"].([]interface{})
	if len(embeds) != 1 {
		t.Fatalf("expected 1 embed, got %v", received)
	}
	embed := embeds[0].(map[string]interface{})
	if !strings.Contains(embed["description"].(string), "5.10%") {
		t.Errorf("description = %q", embed["description"])
	}
	fields := embed["fields"].([]interface{})
	// three outcomes plus risk, age and warnings
	if len(fields) != 6 {
		t.Errorf("expected 6 fields, got %d", len(fields))
	}
}

func TestDiscordSenderBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), NewPayload("x", sampleOpportunity(2, arbitrage.RiskLow), 0, "test"))
	if err == nil {
		t.Error("expected error on 429")
	}
}

type failingSender struct{ calls int }

func (f *failingSender) Send(ctx context.Context, payload *AlertPayload) error {
	f.calls++
	return errors.New("unreachable")
}

func TestMultiSender(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	first := &failingSender{}
	second := &failingSender{}
	m := NewMultiSender(first, NewLogSender(log), second)

	err := m.Send(context.Background(), NewPayload("x", sampleOpportunity(2, arbitrage.RiskLow), 100, "test"))
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Error("every sender should be attempted")
	}
	if !strings.Contains(err.Error(), "sender 0") || !strings.Contains(err.Error(), "sender 2") {
		t.Errorf("error %q should name both failing senders", err)
	}
}

func TestSMTPBody(t *testing.T) {
	s := NewSMTPSender("mail", 25, "", "", "arb@example.com", []string{"ops@example.com"})
	body := s.buildEmailBody(NewPayload("soccer_epl", sampleOpportunity(5.1, arbitrage.RiskMedium), 100, "test"))

	for _, want := range []string{"Arsenal vs Chelsea", "5.10%", "Bet365", "Medium", "Market age"} {
		if !strings.Contains(body, want) {
			t.Errorf("email body missing %q", want)
		}
	}
}
