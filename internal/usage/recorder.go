// Package usage persists append-only usage records. The router core never
// touches storage; the HTTP layer records here after a response is produced.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/observability"
)

const (
	logKey    = "usage:log"
	logMaxLen = 10_000 // keep the most recent entries only
)

// Record is one usage-log entry.
type Record struct {
	UserID     string          `json:"user_id"`
	Provider   domain.Provider `json:"provider"`
	Persona    domain.Persona  `json:"persona"`
	Model      string          `json:"model"`
	Intent     domain.Intent   `json:"intent"`
	TokensIn   int             `json:"tokens_in"`
	TokensOut  int             `json:"tokens_out"`
	LatencyMs  int64           `json:"latency_ms"`
	CreditCost int             `json:"credit_cost"`
	CostUSD    float64         `json:"cost_usd"`
	At         time.Time       `json:"at"`
}

// RedisRecorder implements domain.UsageRecorder on Redis: records go to a
// capped list, and any credit charge is decremented from the user's balance.
type RedisRecorder struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRecorder creates a recorder over the given client.
func NewRedisRecorder(client *redis.Client) *RedisRecorder {
	return &RedisRecorder{
		client: client,
		now:    time.Now,
	}
}

// Record appends one usage entry and applies the credit charge.
func (r *RedisRecorder) Record(ctx context.Context, userID string, resp *domain.ChatResponse) error {
	entry := Record{
		UserID:     userID,
		Provider:   resp.Provider,
		Persona:    resp.Persona,
		Model:      resp.Model,
		Intent:     resp.Intent,
		TokensIn:   resp.TokensIn,
		TokensOut:  resp.TokensOut,
		LatencyMs:  resp.LatencyMs,
		CreditCost: resp.CreditCost,
		CostUSD:    resp.CostEstimate,
		At:         r.now(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal usage record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, logKey, payload)
	pipe.LTrim(ctx, logKey, 0, logMaxLen-1)
	if userID != "" && resp.CreditCost > 0 {
		pipe.DecrBy(ctx, creditsKey(userID), int64(resp.CreditCost))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write usage record: %w", err)
	}

	observability.FromContext(ctx).Debug("usage recorded",
		observability.String("provider", string(resp.Provider)),
		observability.Int("credit_cost", resp.CreditCost))
	return nil
}

// Credits returns a user's remaining credit balance, or nil when the user
// has no balance key (unmetered).
func (r *RedisRecorder) Credits(ctx context.Context, userID string) (*int, error) {
	val, err := r.client.Get(ctx, creditsKey(userID)).Int()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credit balance: %w", err)
	}
	return &val, nil
}

func creditsKey(userID string) string {
	return "credits:" + userID
}
