package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liamashdown/arbwatch/internal/odds"
	"github.com/liamashdown/arbwatch/internal/provider"
	"github.com/liamashdown/arbwatch/internal/ratelimit"
)

// Client reads events already published in the common shape by an in-house scraper
type Client struct {
	name       string
	baseURL    string
	token      string
	priority   int
	enabled    bool
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

var _ provider.Provider = (*Client)(nil)

// NewClient creates a feed client. The feed is expected at {base}/odds?sport=...
func NewClient(s provider.Settings) *Client {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:       s.Name,
		baseURL:    strings.TrimRight(s.BaseURL, "/"),
		token:      s.APIKey,
		priority:   s.Priority,
		enabled:    s.Enabled,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(s.RPS, 0),
	}
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Priority() int { return c.priority }
func (c *Client) Enabled() bool { return c.enabled }

// FetchOdds fetches the feed for one sport
func (c *Client) FetchOdds(ctx context.Context, sport string) ([]odds.Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/odds")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("sport", sport)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw []feedEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	events := make([]odds.Event, 0, len(raw))
	for _, fe := range raw {
		events = append(events, fe.toEvent())
	}
	return events, nil
}

type feedEvent struct {
	EventName    string        `json:"event_name"`
	Sport        string        `json:"sport"`
	HomeTeam     string        `json:"home_team"`
	AwayTeam     string        `json:"away_team"`
	CommenceTime *time.Time    `json:"commence_time"`
	Outcomes     []feedOutcome `json:"outcomes"`
}

type feedOutcome struct {
	OutcomeName string    `json:"outcome_name"`
	Market      string    `json:"market"`
	Odds        feedPrice `json:"odds"`
	OddsFormat  string    `json:"odds_format"`
	Bookmaker   string    `json:"bookmaker"`
}

// feedPrice accepts either a JSON number or a string such as "5/2"
type feedPrice struct {
	set   bool
	value float64
	text  string
}

func (p *feedPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &p.text); err != nil {
			return err
		}
		p.set = p.text != ""
		return nil
	}
	if err := json.Unmarshal(data, &p.value); err != nil {
		return fmt.Errorf("odds must be a number or string: %w", err)
	}
	p.set = true
	return nil
}

func (fe feedEvent) toEvent() odds.Event {
	ev := odds.Event{
		EventName:    fe.EventName,
		Sport:        fe.Sport,
		HomeTeam:     fe.HomeTeam,
		AwayTeam:     fe.AwayTeam,
		CommenceTime: fe.CommenceTime,
		Outcomes:     make([]odds.Offer, 0, len(fe.Outcomes)),
	}

	for _, o := range fe.Outcomes {
		offer := odds.Offer{
			EventName:    fe.EventName,
			Market:       o.Market,
			OutcomeName:  o.OutcomeName,
			Bookmaker:    o.Bookmaker,
			CommenceTime: fe.CommenceTime,
		}
		if o.Odds.set {
			format := odds.Format(o.OddsFormat)
			if format == "" {
				format = odds.FormatDecimal
			}
			offer.Price = &odds.Price{Value: o.Odds.value, Text: o.Odds.text, Format: format}
			// quoted decimal and american prices ("2.10", "+150") carry their value in text;
			// unparsable text leaves a zero value that normalization rejects as invalid
			if format != odds.FormatFractional && o.Odds.text != "" {
				if v, err := strconv.ParseFloat(strings.TrimSpace(o.Odds.text), 64); err == nil {
					offer.Price.Value = v
				}
			}
		}
		ev.Outcomes = append(ev.Outcomes, offer)
	}

	return ev
}
