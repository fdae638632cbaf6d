package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tradelens/analytics-engine/internal/model"
)

// Redis shares dashboard results between engine instances. Each entry
// expires after the TTL on the Redis side.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// redisEntry carries the full filter key so that a hash collision reads
// as a miss instead of returning another selection's result.
type redisEntry struct {
	Key    string                `json:"key"`
	Result model.AggregateResult `json:"result"`
}

// NewRedis creates a Redis-backed cache. ttl <= 0 selects DefaultTTL.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Get reads the result for spec. Redis and decoding errors are misses.
func (c *Redis) Get(ctx context.Context, spec model.FilterSpec) (model.AggregateResult, bool) {
	key := spec.Key()
	data, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis cache get failed", "err", err)
		}
		return model.AggregateResult{}, false
	}

	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		return model.AggregateResult{}, false
	}
	return e.Result, true
}

// Put stores result for spec with the cache TTL. Failures are logged only.
func (c *Redis) Put(ctx context.Context, spec model.FilterSpec, result model.AggregateResult) {
	key := spec.Key()
	data, err := json.Marshal(redisEntry{Key: key, Result: result})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		slog.Warn("redis cache set failed", "err", err)
	}
}

func redisKey(specKey string) string {
	return "dashboard:" + strconv.FormatUint(xxhash.Sum64String(specKey), 16)
}
