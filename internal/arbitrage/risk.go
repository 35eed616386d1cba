package arbitrage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// EvaluateRisk grades an opportunity from the accounts involved and the age of its market.
// It never changes the financial figures and never fails; lookup errors count as a
// perfect stealth score.
func (d *Detector) EvaluateRisk(ctx context.Context, bookmakers []string, marketAgeHours *float64) (RiskLevel, []string) {
	level := RiskLow
	warnings := make([]string, 0)

	if d.lookup != nil {
		var critical []string
		lowScore := false

		for _, b := range bookmakers {
			score := 1.0
			h, err := d.lookup.GetHealth(ctx, b, true)
			if err != nil {
				d.log.WithError(err).WithField("bookmaker", b).Warn("Account health lookup failed")
			} else {
				score = h.StealthScore
			}

			switch {
			case score < d.cfg.CriticalStealthThreshold:
				critical = append(critical, fmt.Sprintf(
					"HIGH RISK: %s has critical stealth score (%.2f). Account may be flagged or limited.", b, score))
			case score < d.cfg.LowStealthThreshold:
				lowScore = true
			}
		}

		if len(critical) > 0 {
			level = RiskHigh
			warnings = append(warnings, critical...)
		} else if lowScore {
			level = RiskMedium
			warnings = append(warnings, "Some accounts have low stealth scores. Exercise caution.")
		}
	}

	if marketAgeHours != nil && *marketAgeHours > d.cfg.MaxMarketAgeHours {
		if level == RiskLow {
			level = RiskMedium
		}
		warnings = append(warnings, fmt.Sprintf(
			"Market age: %.1f hours. Opportunities on old markets may be errors or have stale odds.", *marketAgeHours))
	}

	if level != RiskLow {
		d.log.WithFields(logrus.Fields{
			"risk":       level,
			"bookmakers": bookmakers,
		}).Debug("Opportunity risk escalated")
	}

	return level, warnings
}

// StakeSplit returns the stake per outcome that yields the same payout whichever outcome wins
func StakeSplit(opp Opportunity, bankroll float64) []float64 {
	stakes := make([]float64, len(opp.Outcomes))
	if opp.TotalImpliedProbability <= 0 || bankroll <= 0 {
		return stakes
	}
	for i, o := range opp.Outcomes {
		stakes[i] = bankroll * (1 / o.Odds) / opp.TotalImpliedProbability
	}
	return stakes
}
