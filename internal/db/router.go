package db

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Intent declares whether a unit of work reads only or may write
type Intent int

const (
	// IntentUnspecified routes like ReadWrite
	IntentUnspecified Intent = iota
	ReadOnly
	ReadWrite
)

func (i Intent) String() string {
	switch i {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	}
	return "unspecified"
}

// ErrWriteOnReadOnly is returned when a write primitive runs in a read-only unit of work
var ErrWriteOnReadOnly = errors.New("write attempted in a read-only unit of work")

// Router picks the primary or a replica pool for each unit of work
type Router struct {
	primary     *pgxpool.Pool
	replicas    []*pgxpool.Pool
	next        atomic.Uint64
	lockTimeout time.Duration
}

// NewRouter creates a router. lockTimeout bounds row lock waits in writing units of work; zero waits indefinitely.
func NewRouter(primary *pgxpool.Pool, replicas []*pgxpool.Pool, lockTimeout time.Duration) *Router {
	return &Router{primary: primary, replicas: replicas, lockTimeout: lockTimeout}
}

// Primary returns the write-capable pool
func (r *Router) Primary() *pgxpool.Pool {
	return r.primary
}

// Route returns the pool a unit of work with the given intent must use.
// Only ReadOnly work goes to replicas, round-robin; everything else goes to the primary.
func (r *Router) Route(intent Intent) *pgxpool.Pool {
	if intent != ReadOnly || len(r.replicas) == 0 {
		return r.primary
	}
	n := r.next.Add(1) - 1
	return r.replicas[n%uint64(len(r.replicas))]
}

// Close closes every pool
func (r *Router) Close() {
	r.primary.Close()
	for _, p := range r.replicas {
		p.Close()
	}
}

// Begin declares a unit of work. No connection is acquired until its first statement runs.
func (r *Router) Begin(intent Intent) *Tx {
	return &Tx{router: r, intent: intent}
}

// InTx runs fn inside a unit of work with the given intent. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (r *Router) InTx(ctx context.Context, intent Intent, fn func(tx *Tx) error) (err error) {
	tx := r.Begin(intent)
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(tx); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Tx is a lazily started transaction
type Tx struct {
	router *Router
	intent Intent
	pool   *pgxpool.Pool
	tx     pgx.Tx
}

// Intent returns the declared intent
func (t *Tx) Intent() Intent {
	return t.intent
}

// Target returns the pool the unit of work was routed to, or nil before the first statement
func (t *Tx) Target() *pgxpool.Pool {
	return t.pool
}

func (t *Tx) start(ctx context.Context) error {
	if t.tx != nil {
		return nil
	}

	pool := t.router.Route(t.intent)
	opts := pgx.TxOptions{}
	if t.intent == ReadOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if t.intent != ReadOnly && t.router.lockTimeout > 0 {
		// SET does not accept bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", t.router.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	t.pool = pool
	t.tx = tx
	return nil
}

func (t *Tx) requireWrite() error {
	if t.intent == ReadOnly {
		return ErrWriteOnReadOnly
	}
	return nil
}

// Exec runs a statement, starting the transaction if needed
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := t.start(ctx); err != nil {
		return pgconn.CommandTag{}, err
	}
	return t.tx.Exec(ctx, sql, args...)
}

// Query runs a query, starting the transaction if needed
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := t.start(ctx); err != nil {
		return nil, err
	}
	return t.tx.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query, starting the transaction if needed
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := t.start(ctx); err != nil {
		return errRow{err: err}
	}
	return t.tx.QueryRow(ctx, sql, args...)
}

// Commit commits the transaction; a unit of work that never ran a statement commits trivially
func (t *Tx) Commit(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction; rolling back a finished or unstarted one is a no-op
func (t *Tx) Rollback(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
