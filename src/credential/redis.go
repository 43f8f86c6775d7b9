package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisHash is the hash holding all keys.
const RedisHash = "textlens:storage"

// RedisStore keeps keys as fields of one Redis hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.HGet(ctx, RedisHash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget failure: %w", err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.HSet(ctx, RedisHash, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset failure: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.HDel(ctx, RedisHash, key).Err(); err != nil {
		return fmt.Errorf("redis hdel failure: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
