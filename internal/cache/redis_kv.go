package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisKV is the gateway's durable client state. Every key lives under
// "<prefix>:kv:" and optionally expires after ttl of inactivity.
type RedisKV struct {
	client *redisv9.Client
	prefix string
	ttl    time.Duration
}

func NewRedisKV(client *redisv9.Client, prefix string, ttl time.Duration) *RedisKV {
	if prefix == "" {
		prefix = "lawchat"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisKV{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	if c.ttl > 0 {
		_ = c.client.Expire(ctx, c.key(key), c.ttl).Err()
	}
	return raw, true, nil
}

func (c *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s failed: %w", key, err)
	}
	return nil
}

func (c *RedisKV) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s failed: %w", key, err)
	}
	return nil
}

func (c *RedisKV) key(key string) string {
	return fmt.Sprintf("%s:kv:%s", c.prefix, key)
}
