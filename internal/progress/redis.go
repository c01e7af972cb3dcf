package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to url (redis://[:password@]host:port/db) and
// pings it once.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	val, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Snapshot{}, ErrMiss
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode progress snapshot: %w", err)
	}
	return snap, nil
}

func (r *RedisCache) Set(ctx context.Context, snap Snapshot) error {
	val, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode progress snapshot: %w", err)
	}
	return r.client.Set(ctx, key(snap.SessionID), val, r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
