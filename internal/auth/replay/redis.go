// Package replay holds ReplayCache implementations that can be shared by
// several server processes.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces replay keys in a shared Redis.
const DefaultKeyPrefix = "sekaipass:jti:"

// minTTL keeps an entry alive even when exp is already at hand.
const minTTL = time.Second

// RedisCache is a jwtx.ReplayCache on Redis. Each (client, jti) pair is one
// key written with SET NX, so the check and the store are a single atomic
// command across every process sharing the Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ jwtx.ReplayCache = (*RedisCache)(nil)

// NewRedisCache wraps client. An empty prefix means DefaultKeyPrefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix, now: time.Now}
}

// WithClock sets the clock used to turn exp into a TTL.
func (c *RedisCache) WithClock(now func() time.Time) *RedisCache {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *RedisCache) key(clientID, jti string) string {
	return c.prefix + clientID + ":" + jti
}

// CheckAndStore implements jwtx.ReplayCache. Redis errors fail closed.
func (c *RedisCache) CheckAndStore(ctx context.Context, clientID, jti string, exp time.Time) error {
	ttl := max(exp.Sub(c.now()), minTTL)

	stored, err := c.client.SetNX(ctx, c.key(clientID, jti), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("replay: redis: %w", err)
	}
	if !stored {
		return jwtx.ErrReplayed
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
