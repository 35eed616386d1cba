package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *AlertPayload) error {
	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{s.buildEmbed(payload)},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (s *DiscordSender) buildEmbed(payload *AlertPayload) map[string]interface{} {
	opp := payload.Opportunity

	var title string
	var color int
	switch payload.Severity {
	case SeverityAlert:
		title = "🚨 Arbitrage opportunity (ALERT)"
		color = 0x00C853 // Green
	case SeverityWarn:
		title = "⚠️ Arbitrage opportunity (WARN)"
		color = 0xFFA500 // Orange
	default:
		title = "ℹ️ Arbitrage opportunity"
		color = 0x0099FF // Blue
	}

	description := fmt.Sprintf("**%.2f%%** guaranteed on **%s** (%s)\nImplied probability **%.4f**",
		opp.ProfitPercentage,
		truncate(opp.EventName, 200),
		opp.Market,
		opp.TotalImpliedProbability,
	)

	fields := make([]map[string]interface{}, 0, len(opp.Outcomes)+3)
	for i, o := range opp.Outcomes {
		value := fmt.Sprintf("**%.2f** @ %s", o.Odds, o.Bookmaker)
		if i < len(payload.Stakes) && payload.Stakes[i] > 0 {
			value += fmt.Sprintf("\nStake %.2f", payload.Stakes[i])
		}
		fields = append(fields, map[string]interface{}{
			"name":   truncate(o.OutcomeName, 100),
			"value":  value,
			"inline": true,
		})
	}

	fields = append(fields, map[string]interface{}{
		"name":   "Risk",
		"value":  string(opp.RiskLevel),
		"inline": true,
	})
	if opp.MarketAgeHours != nil {
		fields = append(fields, map[string]interface{}{
			"name":   "Market Age",
			"value":  fmt.Sprintf("%.1fh", *opp.MarketAgeHours),
			"inline": true,
		})
	}
	if len(opp.RiskWarnings) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "Warnings",
			"value":  truncate(strings.Join(opp.RiskWarnings, "\n"), 1000),
			"inline": false,
		})
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("arbwatch • %s • %s • %s", payload.Sport, payload.Environment, payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	return map[string]interface{}{
		"title":       title,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.Timestamp.Format(time.RFC3339),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
