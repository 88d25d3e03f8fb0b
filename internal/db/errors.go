package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xtrntr/auction/internal/auctionerrors"
)

const (
	winningBidIndex = "idx_bids_one_winner"
	usernameKey     = "users_username_key"
)

// classify marks lock, serialization and single-winner failures as concurrency conflicts
// and a duplicate username as a validation error
func classify(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "55P03", // lock_not_available
		pgErr.Code == "40001", // serialization_failure
		pgErr.Code == "40P01", // deadlock_detected
		pgErr.Code == "23505" && pgErr.ConstraintName == winningBidIndex:
		return fmt.Errorf("%w: %w", auctionerrors.ErrConcurrencyConflict, err)
	case pgErr.Code == "23505" && pgErr.ConstraintName == usernameKey:
		return fmt.Errorf("%w: %w", auctionerrors.ErrUsernameTaken, err)
	}
	return err
}
