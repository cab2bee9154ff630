package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists numbers as plain string keys in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings before returning.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	slog.Info("🔌 Connecting to Redis...", "addr", opts.Addr)

	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("✅ Redis connected successfully", "addr", addr)
	return &RedisStore{client: client, prefix: opts.Prefix}, nil
}

func (r *RedisStore) key(k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	if r.prefix != "" {
		return r.prefix + ":" + k, nil
	}
	return k, nil
}

func (r *RedisStore) LoadNumber(ctx context.Context, key string) (float64, bool, error) {
	k, err := r.key(key)
	if err != nil {
		return 0, false, err
	}

	raw, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	v, err := decodeNumber(key, raw)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *RedisStore) SaveNumber(ctx context.Context, key string, value float64) error {
	k, err := r.key(key)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, k, encodeNumber(value), 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (r *RedisStore) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	slog.Info("🔌 Closing Redis connection...")
	return r.client.Close()
}
