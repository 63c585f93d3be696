package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which side effects were already performed.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(host, port string) IdempotencyStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port),
	})
	return &redisClient{client: rdb, prefix: "idempotency:"}
}

// Claim sets key if it is absent and reports whether this caller set it.
func (r *redisClient) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failure: %w", err)
	}
	return ok, nil
}

// Release forgets key so a later redelivery can retry the side effect.
func (r *redisClient) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del failure: %w", err)
	}
	return nil
}
