package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobcompass/internal/logger"
)

// KV is the subset of redis.Cmdable used for result caching.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedProvider serves repeated searches from Redis for a TTL.
// Cache failures fall through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProvider(next Provider, kv KV, ttl time.Duration, log *zap.Logger) Provider {
	if kv == nil || ttl <= 0 {
		return next
	}
	return &CachedProvider{
		next:   next,
		kv:     kv,
		ttl:    ttl,
		logger: logger.OrNop(log).With(zap.String("provider", next.Name())),
	}
}

func (c *CachedProvider) Name() string     { return c.next.Name() }
func (c *CachedProvider) Configured() bool { return c.next.Configured() }

func (c *CachedProvider) Search(ctx context.Context, req Request) ([]Result, error) {
	key := cacheKey(c.next.Name(), req)

	data, err := c.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Result
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			c.logger.Debug("search cache hit", zap.String("key", key), zap.Int("results", len(cached)))
			return cached, nil
		}
	case err != redis.Nil:
		c.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
	}

	results, err := c.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("search cache marshal failed", zap.Error(err))
		return results, nil
	}
	if err := c.kv.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
	return results, nil
}

func cacheKey(provider string, req Request) string {
	raw := strings.ToLower(strings.Join([]string{
		provider,
		req.Query,
		req.Location,
		strings.Join(req.Domains, ","),
		strings.Join(req.ExcludeDomains, ","),
		fmt.Sprintf("%d:%d", req.MaxResults, req.Page),
	}, ":"))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("jobcompass:search:%s:%x", strings.ToLower(provider), hash[:8])
}
