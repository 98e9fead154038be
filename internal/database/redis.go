package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDB holds the one client shared by sessions, presence throttles and
// rate-limit counters.
type RedisDB struct {
	Client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Retry    Retry
}

type redisDriver struct {
	newClient func(opts *redis.Options) *redis.Client
	ping      func(ctx context.Context, client *redis.Client) error
}

var redisDrv = redisDriver{
	newClient: redis.NewClient,
	ping:      func(ctx context.Context, client *redis.Client) error { return client.Ping(ctx).Err() },
}

func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisDB, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 20
	}
	client := redisDrv.newClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: max(poolSize/5, 1),
	})

	err := opts.Retry.Do(ctx, "redis", func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisDrv.ping(attemptCtx, client); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *RedisDB) Health(ctx context.Context) error {
	return redisDrv.ping(ctx, r.Client)
}
