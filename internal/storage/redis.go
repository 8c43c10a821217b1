package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisKV struct {
	client redisKVClient
	prefix string
}

// NewRedisKV usa redis como almacenamiento durable; las claves no expiran.
func NewRedisKV(client *redis.Client) KV {
	if client == nil {
		return nil
	}
	return &redisKV{
		client: client,
		prefix: "clipfeed:kv:",
	}
}

func (s *redisKV) key(key string) string {
	return s.prefix + strings.TrimSpace(key)
}

func (s *redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *redisKV) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *redisKV) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
