package odds

import (
	"time"
)

// Format identifies how an odds value is expressed
type Format string

const (
	FormatDecimal    Format = "decimal"
	FormatFractional Format = "fractional"
	FormatAmerican   Format = "american"
)

// Price is a format-tagged odds value as received from a provider.
// Fractional prices carry either Text ("5/2") or the bare ratio in Value.
type Price struct {
	Value  float64 `json:"value"`
	Text   string  `json:"text,omitempty"`
	Format Format  `json:"format"`
}

// Decimal builds a decimal price
func Decimal(v float64) *Price {
	return &Price{Value: v, Format: FormatDecimal}
}

// American builds a moneyline price
func American(v float64) *Price {
	return &Price{Value: v, Format: FormatAmerican}
}

// Fractional builds a fractional price from "num/den" text
func Fractional(text string) *Price {
	return &Price{Text: text, Format: FormatFractional}
}

// Offer is a single bookmaker price for one outcome of an event
type Offer struct {
	EventName    string     `json:"event_name"`
	Market       string     `json:"market"`
	OutcomeName  string     `json:"outcome_name"`
	Price        *Price     `json:"price,omitempty"`
	Bookmaker    string     `json:"bookmaker"`
	CommenceTime *time.Time `json:"commence_time,omitempty"`
}

// Event groups the offers reported for one fixture
type Event struct {
	EventName    string     `json:"event_name"`
	Sport        string     `json:"sport"`
	HomeTeam     string     `json:"home_team"`
	AwayTeam     string     `json:"away_team"`
	CommenceTime *time.Time `json:"commence_time,omitempty"`
	Outcomes     []Offer    `json:"outcomes"`
	Sources      []string   `json:"sources,omitempty"`
}
