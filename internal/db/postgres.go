package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolOptions tunes the Postgres pool. Zero values fall back to the
// defaults used by New.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func defaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:          25,
		MinConns:          5,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   20 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens a pool from a postgres:// URL and pings it once. A pool that
// cannot be pinged is closed before returning the error.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	return NewWithOptions(ctx, databaseURL, defaultPoolOptions(), logger)
}

func NewWithOptions(ctx context.Context, databaseURL string, opts PoolOptions, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	def := defaultPoolOptions()
	poolConfig.MaxConns = pick(opts.MaxConns, def.MaxConns)
	poolConfig.MinConns = pick(opts.MinConns, def.MinConns)
	poolConfig.MaxConnLifetime = pick(opts.MaxConnLifetime, def.MaxConnLifetime)
	poolConfig.MaxConnIdleTime = pick(opts.MaxConnIdleTime, def.MaxConnIdleTime)
	poolConfig.HealthCheckPeriod = pick(opts.HealthCheckPeriod, def.HealthCheckPeriod)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

func pick[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
