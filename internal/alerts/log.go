package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	opp := payload.Opportunity
	s.log.WithFields(logrus.Fields{
		"severity":   payload.Severity,
		"sport":      payload.Sport,
		"event":      opp.EventName,
		"market":     opp.Market,
		"profit_pct": opp.ProfitPercentage,
		"risk":       opp.RiskLevel,
		"bookmakers": opp.Bookmakers,
		"warnings":   len(opp.RiskWarnings),
	}).Info("Alert generated")
	return nil
}
