// Package dbtest connects integration tests to a real PostgreSQL database.
//
// Tests using it are skipped unless AUCTION_TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/auction/internal/db"
	"github.com/xtrntr/auction/internal/models"
)

// EnvURL names the variable holding the test database connection string
const EnvURL = "AUCTION_TEST_DATABASE_URL"

// Open connects to the test database and applies the schema.
// It returns nil without error when no test database is configured.
func Open(ctx context.Context) (*db.DB, error) {
	url := os.Getenv(EnvURL)
	if url == "" {
		return nil, nil
	}
	d, err := db.NewDB(ctx, db.Options{PrimaryURL: url, MaxConns: 20})
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("unable to connect to test database: %w", err)
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close(ctx)
		return nil, err
	}
	return d, nil
}

// Require skips the test when no database is available, otherwise truncates every table
func Require(t testing.TB, d *db.DB) {
	t.Helper()
	if d == nil {
		t.Skipf("%s not set", EnvURL)
	}
	_, err := d.Router.Primary().Exec(context.Background(),
		"TRUNCATE TABLE bids, auctions, users, expiration_runs RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

// CreateUser inserts a user and returns its id
func CreateUser(t testing.TB, d *db.DB, username string) int64 {
	t.Helper()
	var id int64
	err := d.Router.Primary().QueryRow(context.Background(),
		"INSERT INTO users (username, password_hash) VALUES ($1, 'hash') RETURNING id", username).Scan(&id)
	require.NoError(t, err)
	return id
}

// Auction describes a row to insert directly, bypassing creation rules
type Auction struct {
	SellerID      int64
	Status        models.AuctionStatus
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
}

// InsertAuctions inserts the given auctions in one batch and returns their ids in order
func InsertAuctions(t testing.TB, d *db.DB, auctions ...Auction) []int64 {
	t.Helper()
	ctx := context.Background()

	b := &pgx.Batch{}
	for i, a := range auctions {
		b.Queue(`
			INSERT INTO auctions (title, description, starting_price, current_price, min_bid_increment, seller_id, status, start_time, end_time)
			VALUES ($1, '', $2, $2, $3, $4, $5, $6, $7) RETURNING id`,
			fmt.Sprintf("auction %d", i), a.StartingPrice, a.MinIncrement, a.SellerID, string(a.Status), a.StartTime, a.EndTime)
	}
	br := d.Router.Primary().SendBatch(ctx, b)
	defer br.Close()

	ids := make([]int64, 0, len(auctions))
	for range auctions {
		var id int64
		require.NoError(t, br.QueryRow().Scan(&id))
		ids = append(ids, id)
	}
	return ids
}

// InsertExpiredAuctions inserts n ACTIVE auctions that ended at endedAt
func InsertExpiredAuctions(t testing.TB, d *db.DB, sellerID int64, n int, endedAt time.Time) {
	t.Helper()
	_, err := d.Router.Primary().Exec(context.Background(), `
		INSERT INTO auctions (title, description, starting_price, current_price, min_bid_increment, seller_id, status, start_time, end_time)
		SELECT 'expired ' || g, '', 100, 100, 1, $1, 'ACTIVE', $2::timestamptz - INTERVAL '1 hour', $2::timestamptz
		FROM generate_series(1, $3) AS g`,
		sellerID, endedAt, n)
	require.NoError(t, err)
}

// CountByStatus counts auctions in the given status
func CountByStatus(t testing.TB, d *db.DB, status models.AuctionStatus) int {
	t.Helper()
	var n int
	err := d.Router.Primary().QueryRow(context.Background(),
		"SELECT COUNT(*) FROM auctions WHERE status = $1", string(status)).Scan(&n)
	require.NoError(t, err)
	return n
}

// WinningBidCount counts bids flagged winning on an auction
func WinningBidCount(t testing.TB, d *db.DB, auctionID int64) int {
	t.Helper()
	var n int
	err := d.Router.Primary().QueryRow(context.Background(),
		"SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND is_winning", auctionID).Scan(&n)
	require.NoError(t, err)
	return n
}
