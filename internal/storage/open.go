package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"clipfeed/internal/config"
	"clipfeed/internal/db"
)

// Open construye el backend indicado por STORAGE_DRIVER. La función de
// cierre devuelta siempre es no-nil.
func Open(ctx context.Context, cfg *config.Config) (KV, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "memory":
		return NewMemoryKV(), noop, nil
	case "file":
		kv, err := NewFileKV(cfg.StoragePath)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil
	case "sqlite", "":
		conn, err := db.OpenSQLite(cfg.StoragePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		kv, err := NewSQLiteKV(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, noop, err
		}
		return kv, func() { _ = kv.Close() }, nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("db connect: %w", err)
		}
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.Ping(ctxPing, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("db ping: %w", err)
		}
		kv, err := NewPostgresKV(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return kv, pool.Close, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, noop, fmt.Errorf("REDIS_ADDR is required for the redis driver")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(ctxPing).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisKV(client), func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
