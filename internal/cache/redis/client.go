// Package redis caches chat answers and guardrail verdicts keyed by
// question hash. The cache is an optional collaborator: every method is
// best-effort and failures only log.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/guardrail"
	"github.com/sales-agent/backend/pkg/logger"
	"github.com/sales-agent/backend/pkg/utils"
)

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db, ttlSec int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttlSec <= 0 {
		ttlSec = 3600
	}

	logger.Info("Redis cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{
		client: client,
		ttl:    time.Duration(ttlSec) * time.Second,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetAnswer(ctx context.Context, question string) (string, bool) {
	key := "answer:" + utils.HashString(question)

	answer, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		logger.Warn("Answer cache read failed", zap.Error(err))
		return "", false
	}

	logger.Debug("Answer cache hit", zap.String("key", key))
	return answer, true
}

func (c *Client) SetAnswer(ctx context.Context, question, answer string) {
	key := "answer:" + utils.HashString(question)

	if err := c.client.Set(ctx, key, answer, c.ttl).Err(); err != nil {
		logger.Warn("Answer cache write failed", zap.Error(err))
	}
}

func (c *Client) GetVerdict(ctx context.Context, question string) (*guardrail.Result, bool) {
	key := "verdict:" + utils.HashString(question)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("Verdict cache read failed", zap.Error(err))
		return nil, false
	}

	var result guardrail.Result
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("Verdict cache entry malformed", zap.Error(err))
		return nil, false
	}

	logger.Debug("Verdict cache hit", zap.String("key", key))
	return &result, true
}

func (c *Client) SetVerdict(ctx context.Context, question string, result *guardrail.Result) {
	key := "verdict:" + utils.HashString(question)

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn("Verdict cache marshal failed", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Verdict cache write failed", zap.Error(err))
	}
}
