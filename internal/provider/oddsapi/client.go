package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liamashdown/arbwatch/internal/odds"
	"github.com/liamashdown/arbwatch/internal/provider"
	"github.com/liamashdown/arbwatch/internal/ratelimit"
)

const DefaultBaseURL = "https://api.the-odds-api.com/v4"

// Client fetches odds from The Odds API
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	priority   int
	enabled    bool
	regions    []string
	markets    []string
	httpClient *http.Client
	limiter    *ratelimit.Limiter

	mu        sync.RWMutex
	remaining *int
	resetAt   *time.Time
}

var (
	_ provider.Provider      = (*Client)(nil)
	_ provider.QuotaReporter = (*Client)(nil)
)

// NewClient creates a new Odds API client
func NewClient(s provider.Settings) *Client {
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	name := s.Name
	if name == "" {
		name = "the_odds_api"
	}
	regions := s.Regions
	if len(regions) == 0 {
		regions = []string{"us", "uk"}
	}
	markets := s.Markets
	if len(markets) == 0 {
		markets = []string{"h2h"}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     s.APIKey,
		priority:   s.Priority,
		enabled:    s.Enabled,
		regions:    regions,
		markets:    markets,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(s.RPS, 0),
	}
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Priority() int { return c.priority }
func (c *Client) Enabled() bool { return c.enabled }

// FetchOdds fetches and translates the odds for a sport key such as "soccer_epl"
func (c *Client) FetchOdds(ctx context.Context, sport string) ([]odds.Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/sports/" + url.PathEscape(sport) + "/odds")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("regions", strings.Join(c.regions, ","))
	q.Set("markets", strings.Join(c.markets, ","))
	q.Set("oddsFormat", "decimal")
	q.Set("dateFormat", "iso")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.readQuota(resp.Header)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("401 Unauthorized - check api key")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("429 quota exhausted")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw []Event
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return Translate(raw), nil
}

// Translate maps API events to the common event shape, one event per fixture, market
// and line. h2h keeps the plain fixture name; other markets are suffixed with their key
// and line so that they never share outcome groups. Non-positive prices are dropped, as
// are events left without any offer.
func Translate(raw []Event) []odds.Event {
	events := make([]odds.Event, 0, len(raw))

	for _, ev := range raw {
		sportTitle := ev.SportTitle
		if sportTitle == "" {
			sportTitle = "Unknown"
		}
		fixture := sportTitle + " - " + ev.HomeTeam + " vs " + ev.AwayTeam

		var commence *time.Time
		if !ev.CommenceTime.IsZero() {
			ct := ev.CommenceTime
			commence = &ct
		}

		// groups in first-seen order
		var order []string
		groups := make(map[string][]odds.Offer)

		for _, bm := range ev.Bookmakers {
			bookmaker := bm.Title
			if bookmaker == "" {
				bookmaker = "Unknown"
			}
			for _, m := range bm.Markets {
				market := m.Key
				if market == "" {
					market = "h2h"
				}
				for _, o := range m.Outcomes {
					if o.Price <= 0 {
						continue
					}
					name := groupEventName(fixture, market, o.Point)
					if _, seen := groups[name]; !seen {
						order = append(order, name)
					}
					groups[name] = append(groups[name], odds.Offer{
						EventName:    name,
						Market:       market,
						OutcomeName:  outcomeName(o),
						Price:        odds.Decimal(o.Price),
						Bookmaker:    bookmaker,
						CommenceTime: commence,
					})
				}
			}
		}

		for _, name := range order {
			events = append(events, odds.Event{
				EventName:    name,
				Sport:        sportTitle,
				HomeTeam:     ev.HomeTeam,
				AwayTeam:     ev.AwayTeam,
				CommenceTime: commence,
				Outcomes:     groups[name],
			})
		}
	}

	return events
}

// groupEventName names the event an outcome belongs to: "EPL - A vs B [totals 2.5]".
// Both sides of a handicap share the absolute line.
func groupEventName(fixture, market string, point *float64) string {
	if market == "h2h" && point == nil {
		return fixture
	}
	if point == nil {
		return fixture + " [" + market + "]"
	}
	return fixture + " [" + market + " " + strconv.FormatFloat(math.Abs(*point), 'f', -1, 64) + "]"
}

// outcomeName folds the line into the name: "Arsenal -1.5", "Over 2.5"
func outcomeName(o Outcome) string {
	if o.Point == nil {
		return o.Name
	}
	if o.Name == "Over" || o.Name == "Under" {
		return o.Name + " " + strconv.FormatFloat(*o.Point, 'f', -1, 64)
	}
	return fmt.Sprintf("%s %+g", o.Name, *o.Point)
}

// readQuota captures x-requests-remaining and x-requests-reset (seconds until reset) when present
func (c *Client) readQuota(h http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := h.Get("x-requests-remaining"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			n := int(f)
			c.remaining = &n
		}
	}
	if v := h.Get("x-requests-reset"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			t := time.Now().Add(time.Duration(secs) * time.Second)
			c.resetAt = &t
		}
	}
}

// RemainingQuota returns the last reported remaining request count
func (c *Client) RemainingQuota() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.remaining == nil {
		return 0, false
	}
	return *c.remaining, true
}

// ResetTime returns when the quota is expected to reset
func (c *Client) ResetTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.resetAt == nil {
		return time.Time{}, false
	}
	return *c.resetAt, true
}
