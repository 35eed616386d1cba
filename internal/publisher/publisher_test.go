package publisher

import (
	"encoding/json"
	"testing"

	"github.com/liamashdown/arbwatch/internal/arbitrage"
)

func TestStreamKey(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{prefix: "", expected: "opportunities.detected.soccer_epl"},
		{prefix: "arbs", expected: "arbs.soccer_epl"},
	}

	for _, tt := range tests {
		p := NewRedisPublisher(nil, tt.prefix)
		if got := p.StreamKey("soccer_epl"); got != tt.expected {
			t.Errorf("StreamKey() = %q, expected %q", got, tt.expected)
		}
	}
}

func TestStreamValues(t *testing.T) {
	opp := arbitrage.Opportunity{
		ID:               "abc",
		EventName:        "Arsenal vs Chelsea",
		ProfitPercentage: 4.9583,
		RiskLevel:        arbitrage.RiskMedium,
	}

	values, err := streamValues(opp)
	if err != nil {
		t.Fatalf("streamValues() error = %v", err)
	}
	if values["profit"] != "4.9583" || values["risk"] != "Medium" || values["id"] != "abc" {
		t.Errorf("unexpected values %v", values)
	}

	var decoded arbitrage.Opportunity
	if err := json.Unmarshal([]byte(values["opportunity"].(string)), &decoded); err != nil {
		t.Fatalf("opportunity field is not JSON: %v", err)
	}
	if decoded.EventName != opp.EventName {
		t.Errorf("EventName = %q", decoded.EventName)
	}
}
