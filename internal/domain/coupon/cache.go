package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "coupon:code:"

// Cache keeps coupons by code in Redis. A nil client disables it.
// Usages and Sends are never cached.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates coupon cache
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached coupon; misses and Redis failures both report false
func (c *Cache) Get(ctx context.Context, code string) (*Coupon, bool) {
	if !c.enabled() {
		return nil, false
	}

	raw, err := c.client.Get(ctx, cacheKeyPrefix+NormalizeCode(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("code", code).Msg("coupon cache read failed")
		}
		return nil, false
	}

	var cp Coupon
	if err := json.Unmarshal(raw, &cp); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("coupon cache entry corrupt")
		return nil, false
	}
	return &cp, true
}

func (c *Cache) Set(ctx context.Context, cp *Coupon) {
	if !c.enabled() {
		return
	}

	bare := *cp
	bare.Usages, bare.Sends = nil, nil
	raw, err := json.Marshal(&bare)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+cp.Code, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("code", cp.Code).Msg("coupon cache write failed")
	}
}

func (c *Cache) Invalidate(ctx context.Context, code string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+NormalizeCode(code)).Err(); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("coupon cache invalidation failed")
	}
}
