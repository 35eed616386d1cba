package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	opp := payload.Opportunity
	subject := fmt.Sprintf("[%s] Arbitrage %.2f%% on %s", payload.Severity, opp.ProfitPercentage, opp.EventName)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(s.buildEmailBody(payload))

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func (s *SMTPSender) buildEmailBody(payload *AlertPayload) string {
	opp := payload.Opportunity
	var b strings.Builder

	fmt.Fprintf(&b, "ARBWATCH ALERT - %s\n", payload.Severity)
	b.WriteString("═══════════════════════════════════════\n\n")
	b.WriteString("OPPORTUNITY\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Event:          %s\n", opp.EventName)
	fmt.Fprintf(&b, "Sport:          %s\n", payload.Sport)
	fmt.Fprintf(&b, "Market:         %s\n", opp.Market)
	fmt.Fprintf(&b, "Profit:         %.2f%%\n", opp.ProfitPercentage)
	fmt.Fprintf(&b, "Implied prob:   %.4f\n", opp.TotalImpliedProbability)
	if opp.MarketAgeHours != nil {
		fmt.Fprintf(&b, "Market age:     %.1f hours\n", *opp.MarketAgeHours)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "BETS (bankroll %.2f)\n", payload.Bankroll)
	b.WriteString("─────────────────────────────────────\n")
	for i, o := range opp.Outcomes {
		stake := 0.0
		if i < len(payload.Stakes) {
			stake = payload.Stakes[i]
		}
		fmt.Fprintf(&b, "%-15s %.2f @ %s (stake %.2f)\n", o.OutcomeName, o.Odds, o.Bookmaker, stake)
	}
	b.WriteString("\n")

	b.WriteString("RISK\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Level:          %s\n", opp.RiskLevel)
	for _, w := range opp.RiskWarnings {
		fmt.Fprintf(&b, "- %s\n", w)
	}
	b.WriteString("\n═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Environment: %s\n", payload.Environment)
	fmt.Fprintf(&b, "Detected: %s\n", payload.Timestamp.UTC().Format(time.RFC3339))

	return b.String()
}
