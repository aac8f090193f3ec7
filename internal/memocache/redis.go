package memocache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Redis is a Cache backed by a Redis server. Entries expire after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to url and pings the server.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "memocache: parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "memocache: redis ping")
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the memo for key. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	memo, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "memocache: redis get")
	}
	return memo, true, nil
}

// Set stores memo under key with the cache TTL.
func (r *Redis) Set(ctx context.Context, key, memo string) error {
	return eris.Wrap(r.client.Set(ctx, key, memo, r.ttl).Err(), "memocache: redis set")
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
