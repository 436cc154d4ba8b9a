package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChannel is a durable credential store shared by every client process
// connected to the same redis, the way browser storage is shared by every
// tab of one origin.
type RedisChannel struct {
	client *redis.Client
	prefix string
}

// NewRedisChannel connects to redisURL and verifies the connection.
func NewRedisChannel(redisURL string) (*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisChannelWithClient(client), nil
}

// NewRedisChannelWithClient wraps an existing client.
func NewRedisChannelWithClient(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client, prefix: "gophshop:credential:"}
}

// Name implements Channel.
func (rc *RedisChannel) Name() string { return "redis" }

func (rc *RedisChannel) key(k string) string {
	return rc.prefix + k
}

// Set implements Channel. A past expiry deletes the key instead of storing it.
func (rc *RedisChannel) Set(ctx context.Context, key, value string, expires time.Time) error {
	var ttl time.Duration
	if !expires.IsZero() {
		ttl = time.Until(expires)
		if ttl <= 0 {
			return rc.Delete(ctx, key)
		}
	}
	if err := rc.client.Set(ctx, rc.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Get implements Channel.
func (rc *RedisChannel) Get(ctx context.Context, key string) (string, error) {
	v, err := rc.client.Get(ctx, rc.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup credential: %w", err)
	}
	return v, nil
}

// Delete implements Channel.
func (rc *RedisChannel) Delete(ctx context.Context, key string) error {
	if err := rc.client.Del(ctx, rc.key(key)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (rc *RedisChannel) Close() error {
	return rc.client.Close()
}
