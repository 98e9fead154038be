package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by RedisClient reads of absent or expired keys.
var ErrKeyNotFound = errors.New("key not found")

// RedisClient is the part of Redis the services rely on: session tokens
// with a sliding expiry and presence write throttling.
type RedisClient interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// GetEx reads key and resets its expiry to ttl in one round trip.
	GetEx(ctx context.Context, key string, ttl time.Duration) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisAdapter implements RedisClient on a go-redis client.
type RedisAdapter struct {
	client redis.Cmdable
}

func NewRedisAdapter(client redis.Cmdable) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisAdapter) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisAdapter) GetEx(ctx context.Context, key string, ttl time.Duration) (string, error) {
	value, err := r.client.GetEx(ctx, key, ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return value, err
}

func (r *RedisAdapter) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
