package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	values map[string]string

	lastSetTTL time.Duration
	lastDel    []string

	getErr error
	setErr error
}

func newMockRedisKVClient() *mockRedisKVClient {
	return &mockRedisKVClient{values: make(map[string]string)}
}

func (m *mockRedisKVClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	v, ok := m.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	m.values[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.lastDel = keys
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisKV_Contract(t *testing.T) {
	mock := newMockRedisKVClient()
	exerciseKV(t, &redisKV{client: mock, prefix: "clipfeed:kv:"})
	if mock.lastSetTTL != 0 {
		t.Fatalf("identity keys must not expire, got ttl %v", mock.lastSetTTL)
	}
	if len(mock.lastDel) != 1 || mock.lastDel[0] != "clipfeed:kv:user" {
		t.Fatalf("unexpected del key: %+v", mock.lastDel)
	}
}

func TestRedisKV_ErrorPaths(t *testing.T) {
	mock := newMockRedisKVClient()
	mock.getErr = errors.New("get failed")
	mock.setErr = errors.New("set failed")
	kv := &redisKV{client: mock, prefix: "clipfeed:kv:"}

	if _, err := kv.Get(context.Background(), "user"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if err := kv.Set(context.Background(), "user", "v"); err == nil {
		t.Fatalf("expected set error")
	}
}

func TestNewRedisKV_NilClient(t *testing.T) {
	if kv := NewRedisKV(nil); kv != nil {
		t.Fatalf("expected nil kv for nil client")
	}
}
