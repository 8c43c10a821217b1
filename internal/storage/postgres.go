package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS client_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// pgQuerier es el subconjunto de pgxpool.Pool que usa el backend.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresKV implementa KV usando pgxpool.
type PostgresKV struct {
	pool pgQuerier
}

func NewPostgresKV(ctx context.Context, pool pgQuerier) (*PostgresKV, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create client_kv table: %w", err)
	}
	return &PostgresKV{pool: pool}, nil
}

func (r *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	const query = `
		SELECT value
		FROM client_kv
		WHERE key = $1
	`
	var value string
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *PostgresKV) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO client_kv (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, key, value, time.Now().UTC())
	return err
}

func (r *PostgresKV) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM client_kv WHERE key = $1`
	_, err := r.pool.Exec(ctx, query, key)
	return err
}
