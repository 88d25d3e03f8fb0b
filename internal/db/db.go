package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtrntr/auction/migrations"
)

// DB wraps the primary and replica PostgreSQL pools behind a Router
type DB struct {
	Router *Router
}

// Options configures the connection pools
type Options struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int32
	LockTimeout time.Duration
}

// NewDB initializes the primary pool and one pool per replica
func NewDB(ctx context.Context, opts Options) (*DB, error) {
	primary, err := openPool(ctx, opts.PrimaryURL, opts.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to create primary pool: %w", err)
	}

	replicas := make([]*pgxpool.Pool, 0, len(opts.ReplicaURLs))
	for i, url := range opts.ReplicaURLs {
		pool, err := openPool(ctx, url, opts.MaxConns)
		if err != nil {
			primary.Close()
			for _, p := range replicas {
				p.Close()
			}
			return nil, fmt.Errorf("failed to create replica pool %d: %w", i, err)
		}
		replicas = append(replicas, pool)
	}

	return &DB{Router: NewRouter(primary, replicas, opts.LockTimeout)}, nil
}

func openPool(ctx context.Context, connString string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Close closes all connection pools
func (db *DB) Close(ctx context.Context) error {
	db.Router.Close()
	return nil
}

// Ping checks the primary is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Router.Primary().Ping(ctx)
}

// Migrate applies the schema on the primary; it is safe to run repeatedly
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Router.Primary().Exec(ctx, migrations.Init); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}
