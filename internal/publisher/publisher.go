package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/liamashdown/arbwatch/internal/arbitrage"
	"github.com/liamashdown/arbwatch/internal/metrics"
)

const streamMaxLen = 10000

// Publisher forwards detected opportunities to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, sport string, opp arbitrage.Opportunity) error
}

// RedisPublisher appends opportunities to a per-sport Redis stream
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher writing to "{prefix}.{sport}"
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "opportunities.detected"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// StreamKey returns the stream an opportunity for sport is written to
func (p *RedisPublisher) StreamKey(sport string) string {
	return p.prefix + "." + sport
}

// Publish appends the opportunity, trimming the stream to roughly streamMaxLen entries
func (p *RedisPublisher) Publish(ctx context.Context, sport string, opp arbitrage.Opportunity) error {
	values, err := streamValues(opp)
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.StreamKey(sport),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	metrics.RecordPublish(err)
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.StreamKey(sport), err)
	}
	return nil
}

func streamValues(opp arbitrage.Opportunity) (map[string]interface{}, error) {
	data, err := json.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("marshal opportunity: %w", err)
	}
	return map[string]interface{}{
		"opportunity": string(data),
		"id":          opp.ID,
		"profit":      strconv.FormatFloat(opp.ProfitPercentage, 'f', 4, 64),
		"risk":        string(opp.RiskLevel),
	}, nil
}
