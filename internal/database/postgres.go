package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

type PostgresOptions struct {
	DSN      string
	MaxConns int32
	MinConns int32
	Retry    Retry
}

// pgDriver is the slice of pgxpool OpenPostgres needs.
type pgDriver struct {
	parse func(dsn string) (*pgxpool.Config, error)
	open  func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error)
	ping  func(ctx context.Context, pool *pgxpool.Pool) error
	close func(pool *pgxpool.Pool)
}

var pgDrv = pgDriver{
	parse: pgxpool.ParseConfig,
	open:  pgxpool.NewWithConfig,
	ping:  func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) },
	close: func(pool *pgxpool.Pool) { pool.Close() },
}

// OpenPostgres creates the pool and waits until the server answers a ping.
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*PostgresDB, error) {
	cfg, err := pgDrv.parse(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	err = opts.Retry.Do(ctx, "postgres", func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		p, err := pgDrv.open(attemptCtx, cfg)
		if err != nil {
			return fmt.Errorf("open pool: %w", err)
		}
		if err := pgDrv.ping(attemptCtx, p); err != nil {
			pgDrv.close(p)
			return fmt.Errorf("ping: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		pgDrv.close(db.Pool)
	}
}

func (db *PostgresDB) Health(ctx context.Context) error {
	return pgDrv.ping(ctx, db.Pool)
}
