package alerts

import (
	"context"
	"time"

	"github.com/liamashdown/arbwatch/internal/arbitrage"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityAlert Severity = "ALERT"
)

// AlertPayload contains all information for an opportunity alert
type AlertPayload struct {
	Severity    Severity
	Sport       string
	Opportunity arbitrage.Opportunity
	Bankroll    float64
	Stakes      []float64 // aligned with Opportunity.Outcomes
	RecordID    string
	Timestamp   time.Time
	Environment string
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
}

// DetermineSeverity maps risk and profit to an alert severity. Risky
// opportunities are downgraded since they are more likely to be voided.
func DetermineSeverity(opp arbitrage.Opportunity) Severity {
	switch {
	case opp.RiskLevel == arbitrage.RiskHigh:
		return SeverityInfo
	case opp.RiskLevel == arbitrage.RiskLow && opp.ProfitPercentage >= 3.0:
		return SeverityAlert
	case opp.ProfitPercentage >= 1.5:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// NewPayload builds a payload with an equal-payout stake split for bankroll
func NewPayload(sport string, opp arbitrage.Opportunity, bankroll float64, environment string) *AlertPayload {
	return &AlertPayload{
		Severity:    DetermineSeverity(opp),
		Sport:       sport,
		Opportunity: opp,
		Bankroll:    bankroll,
		Stakes:      arbitrage.StakeSplit(opp, bankroll),
		Timestamp:   opp.Timestamp,
		Environment: environment,
	}
}
