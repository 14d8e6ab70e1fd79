package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxJitter = 5 * time.Minute

// setIfGeneration writes KEYS[1] only while the generation in KEYS[2] still equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if (current or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

func NewRedisCache[T any](client redis.UniversalClient, prefix string, baseTTL time.Duration) *RedisCache[T] {
	return &RedisCache[T]{
		client:  client,
		prefix:  prefix,
		baseTTL: baseTTL,
	}
}

type RedisCache[T any] struct {
	client  redis.UniversalClient
	prefix  string
	baseTTL time.Duration
}

func (r *RedisCache[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := r.client.Get(ctx, r.cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshal %s failed: %w", r.prefix, err)
	}

	return &value, nil
}

func (r *RedisCache[T]) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

func (r *RedisCache[T]) Set(ctx context.Context, key string, gen int64, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", r.prefix, err)
	}

	// jitter spreads expiry so hot keys do not all miss at once
	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
	written, err := setIfGeneration.Run(ctx, r.client,
		[]string{r.cacheKey(key), r.genKey(key)},
		strconv.FormatInt(gen, 10), data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if written == 0 {
		return ErrStaleGeneration
	}
	return nil
}

// Delete drops the value and bumps the generation in one transaction. The
// generation outlives any value written before it.
func (r *RedisCache[T]) Delete(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.cacheKey(key))
		pipe.Incr(ctx, r.genKey(key))
		pipe.Expire(ctx, r.genKey(key), r.baseTTL+maxJitter)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache[T]) cacheKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisCache[T]) genKey(key string) string {
	return fmt.Sprintf("%s:gen:%s", r.prefix, key)
}
