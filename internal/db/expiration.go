package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExpiredAuctionIDs returns up to limit ids of ACTIVE auctions ended by cutoff, ascending after afterID
func (db *DB) ExpiredAuctionIDs(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id
			FROM auctions
			WHERE status = 'ACTIVE' AND end_time <= $1 AND id > $2
			ORDER BY id ASC
			LIMIT $3
		`, cutoff, afterID, limit)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read expired auctions: %w", err)
	}
	return ids, nil
}

// EndAuctions ends one chunk of auctions in its own transaction. The source filter is re-applied,
// so ids that no longer qualify are left alone. It returns the number of rows ended.
func (db *DB) EndAuctions(ctx context.Context, ids []int64, cutoff time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var ended int64
	err := db.Router.InTx(ctx, ReadWrite, func(tx *Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE auctions
			SET status = 'ENDED', updated_at = NOW()
			WHERE id = ANY($1::bigint[]) AND status = 'ACTIVE' AND end_time <= $2
		`, ids, cutoff)
		if err != nil {
			return err
		}
		ended = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to end auctions: %w", err)
	}
	return ended, nil
}

// ClaimRun records the start of an expiration run. It returns false when the key was already claimed.
func (db *DB) ClaimRun(ctx context.Context, runKey uuid.UUID, cutoff time.Time) (bool, error) {
	var claimed bool
	err := db.Router.InTx(ctx, ReadWrite, func(tx *Tx) error {
		tag, err := tx.Exec(ctx,
			"INSERT INTO expiration_runs (run_key, cutoff) VALUES ($1, $2) ON CONFLICT (run_key) DO NOTHING",
			runKey, cutoff)
		if err != nil {
			return err
		}
		claimed = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim expiration run: %w", err)
	}
	return claimed, nil
}

// FinishRun stores the outcome of an expiration run
func (db *DB) FinishRun(ctx context.Context, runKey uuid.UUID, processed int64, failedChunks int) error {
	err := db.Router.InTx(ctx, ReadWrite, func(tx *Tx) error {
		_, err := tx.Exec(ctx,
			"UPDATE expiration_runs SET finished_at = NOW(), processed = $2, failed_chunks = $3 WHERE run_key = $1",
			runKey, processed, failedChunks)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to finish expiration run: %w", err)
	}
	return nil
}
