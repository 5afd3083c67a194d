package epoch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "agora:epoch:"

	// DefaultCacheTTL bounds how long a cached epoch may lag a bump made by
	// another process that could not reach Redis.
	DefaultCacheTTL = 5 * time.Minute
)

// RedisCache is a read-through cache in front of another Store. Epoch checks
// happen on every authenticated request, so keeping them off the primary
// store matters; a bump deletes the cached value so the next read refills it.
//
// Redis being down degrades to the primary store, never to a stale answer
// served past its TTL.
type RedisCache struct {
	primary Store
	client  redis.UniversalClient
	ttl     time.Duration
	log     *slog.Logger
}

// NewRedisCache wraps primary with a Redis read-through cache.
func NewRedisCache(primary Store, client redis.UniversalClient, ttl time.Duration, log *slog.Logger) (*RedisCache, error) {
	if primary == nil {
		return nil, fmt.Errorf("epoch: nil primary store")
	}
	if client == nil {
		return nil, fmt.Errorf("epoch: nil redis client")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{primary: primary, client: client, ttl: ttl, log: log}, nil
}

func cacheKey(accountID string) string { return cacheKeyPrefix + accountID }

func (c *RedisCache) Current(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}

	val, err := c.client.Get(ctx, cacheKey(accountID)).Result()
	if err == nil {
		if e, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return e, nil
		}
		// A corrupt entry is treated as a miss and overwritten below.
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("epoch cache read failed, falling back to primary",
			slog.String("error", err.Error()))
	}

	e, err := c.primary.Current(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, cacheKey(accountID), strconv.FormatInt(e, 10), c.ttl).Err(); err != nil {
		c.log.Warn("epoch cache write failed",
			slog.String("error", err.Error()))
	}
	return e, nil
}

// Bump increments via the primary store and invalidates the cached value.
// Delete (not set) keeps the cache correct even if a concurrent bump lands
// between our write and theirs.
func (c *RedisCache) Bump(ctx context.Context, now time.Time, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}

	e, err := c.primary.Bump(ctx, now, accountID)
	if err != nil {
		return 0, err
	}

	if err := c.client.Del(ctx, cacheKey(accountID)).Err(); err != nil {
		c.log.Warn("epoch cache invalidation failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
	}
	return e, nil
}
