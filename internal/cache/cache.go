// Package cache remembers extraction results in Redis so that resubmitting
// the same announcement does not pay for another oracle call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/announcer/internal/metrics"
	"github.com/telhawk-systems/announcer/internal/models"
)

const keyPrefix = "announcer:extraction:"

// ExtractionCache stores normalized events keyed by everything that
// influences the oracle reply.
type ExtractionCache struct {
	redis   *redis.Client
	ttl     time.Duration
	enabled bool
}

// NewRedisClient connects to the Redis server at url and checks it answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewExtractionCache(client *redis.Client, ttl time.Duration, enabled bool) *ExtractionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExtractionCache{redis: client, ttl: ttl, enabled: enabled}
}

// IsEnabled returns whether lookups reach Redis.
func (c *ExtractionCache) IsEnabled() bool {
	return c != nil && c.enabled && c.redis != nil
}

// Key identifies one extraction: the same text under a different model,
// timezone or reference date may produce a different event.
func Key(model, timezone string, referenceDate time.Time, announcement string) string {
	h := sha256.New()
	for _, part := range []string{model, timezone, referenceDate.Format(time.DateOnly), announcement} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached event for key. A miss is (nil, false, nil).
func (c *ExtractionCache) Get(ctx context.Context, key string) (*models.NormalizedEvent, bool, error) {
	if !c.IsEnabled() {
		return nil, false, nil
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to get cached extraction: %w", err)
	}

	var event models.NormalizedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to unmarshal cached extraction: %w", err)
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &event, true, nil
}

// Set stores event under key for the cache TTL.
func (c *ExtractionCache) Set(ctx context.Context, key string, event *models.NormalizedEvent) error {
	if !c.IsEnabled() {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache extraction: %w", err)
	}
	return nil
}

// Purge drops every cached extraction.
func (c *ExtractionCache) Purge(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached extractions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to purge cached extractions: %w", err)
	}
	return nil
}
