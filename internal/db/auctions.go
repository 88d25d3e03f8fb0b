package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/models"
)

const auctionColumns = "id, title, description, starting_price, current_price, min_bid_increment, " +
	"seller_id, status, start_time, end_time, bid_count, winner_id, created_at, updated_at"

const bidColumns = "id, auction_id, bidder_id, bid_amount, bid_time, is_winning"

func scanAuction(row pgx.Row) (*models.Auction, error) {
	a := &models.Auction{}
	var status string
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.StartingPrice, &a.CurrentPrice, &a.MinBidIncrement,
		&a.SellerID, &status, &a.StartTime, &a.EndTime, &a.BidCount, &a.WinnerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.AuctionStatus(status)
	return a, nil
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	b := &models.Bid{}
	if err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.BidTime, &b.IsWinning); err != nil {
		return nil, err
	}
	return b, nil
}

func collectAuctions(rows pgx.Rows) ([]models.Auction, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Auction, error) {
		a, err := scanAuction(row)
		if err != nil {
			return models.Auction{}, err
		}
		return *a, nil
	})
}

func collectBids(rows pgx.Rows) ([]models.Bid, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Bid, error) {
		b, err := scanBid(row)
		if err != nil {
			return models.Bid{}, err
		}
		return *b, nil
	})
}

// InsertAuction stores a new auction and returns it as persisted
func (t *Tx) InsertAuction(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	if err := t.requireWrite(); err != nil {
		return nil, err
	}
	created, err := scanAuction(t.QueryRow(ctx,
		"INSERT INTO auctions (title, description, starting_price, current_price, min_bid_increment, seller_id, status, start_time, end_time, bid_count) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING "+auctionColumns,
		a.Title, a.Description, a.StartingPrice, a.CurrentPrice, a.MinBidIncrement, a.SellerID,
		string(a.Status), a.StartTime, a.EndTime, a.BidCount))
	if err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return created, nil
}

// LockAuction reads an auction and holds an exclusive row lock on it until the transaction ends
func (t *Tx) LockAuction(ctx context.Context, auctionID int64) (*models.Auction, error) {
	if err := t.requireWrite(); err != nil {
		return nil, err
	}
	a, err := scanAuction(t.QueryRow(ctx,
		"SELECT "+auctionColumns+" FROM auctions WHERE id = $1 FOR UPDATE", auctionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock auction %d: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock auction: %w", err)
	}
	return a, nil
}

// WinningBid returns the bid flagged winning for an auction, or nil when there is none
func (t *Tx) WinningBid(ctx context.Context, auctionID int64) (*models.Bid, error) {
	b, err := scanBid(t.QueryRow(ctx,
		"SELECT "+bidColumns+" FROM bids WHERE auction_id = $1 AND is_winning", auctionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}
	return b, nil
}

// DemoteBid clears the winning flag of a bid
func (t *Tx) DemoteBid(ctx context.Context, bidID int64) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	tag, err := t.Exec(ctx, "UPDATE bids SET is_winning = FALSE WHERE id = $1 AND is_winning", bidID)
	if err != nil {
		return fmt.Errorf("failed to demote bid: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("demote bid %d: %w", bidID, auctionerrors.ErrConcurrencyConflict)
	}
	return nil
}

// InsertWinningBid stores a new bid flagged as winning
func (t *Tx) InsertWinningBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal) (*models.Bid, error) {
	if err := t.requireWrite(); err != nil {
		return nil, err
	}
	b, err := scanBid(t.QueryRow(ctx,
		"INSERT INTO bids (auction_id, bidder_id, bid_amount, is_winning) VALUES ($1, $2, $3, TRUE) RETURNING "+bidColumns,
		auctionID, bidderID, amount))
	if err != nil {
		return nil, fmt.Errorf("failed to create bid: %w", err)
	}
	return b, nil
}

// ApplyWinningBid moves the auction price to amount, counts the bid and records the winner
func (t *Tx) ApplyWinningBid(ctx context.Context, auctionID int64, amount decimal.Decimal, bidderID int64) (*models.Auction, error) {
	if err := t.requireWrite(); err != nil {
		return nil, err
	}
	a, err := scanAuction(t.QueryRow(ctx,
		"UPDATE auctions SET current_price = $2, bid_count = bid_count + 1, winner_id = $3, updated_at = NOW() "+
			"WHERE id = $1 RETURNING "+auctionColumns,
		auctionID, amount, bidderID))
	if err != nil {
		return nil, fmt.Errorf("failed to update auction price: %w", err)
	}
	return a, nil
}

// SetAuctionStatus moves a locked auction from one status to the next
func (t *Tx) SetAuctionStatus(ctx context.Context, auctionID int64, from, to models.AuctionStatus) (*models.Auction, error) {
	if err := t.requireWrite(); err != nil {
		return nil, err
	}
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: cannot move auction from %s to %s", auctionerrors.ErrValidation, from, to)
	}
	a, err := scanAuction(t.QueryRow(ctx,
		"UPDATE auctions SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2 RETURNING "+auctionColumns,
		auctionID, string(from), string(to)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("set auction %d status: %w", auctionID, auctionerrors.ErrConcurrencyConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update auction status: %w", err)
	}
	return a, nil
}

// ActivatePending moves every PENDING auction whose start time has passed to ACTIVE
func (t *Tx) ActivatePending(ctx context.Context, now time.Time) ([]int64, error) {
	return t.advance(ctx, models.StatusPending, models.StatusActive, "start_time", now)
}

// EndExpired moves every ACTIVE auction whose end time has passed to ENDED
func (t *Tx) EndExpired(ctx context.Context, now time.Time) ([]int64, error) {
	return t.advance(ctx, models.StatusActive, models.StatusEnded, "end_time", now)
}

func (t *Tx) advance(ctx context.Context, from, to models.AuctionStatus, column string, now time.Time) ([]int64, error) {
	if err := t.requireWrite(); err != nil {
		return nil, err
	}
	rows, err := t.Query(ctx,
		"UPDATE auctions SET status = $2, updated_at = NOW() WHERE status = $1 AND "+column+" <= $3 RETURNING id",
		string(from), string(to), now)
	if err != nil {
		return nil, fmt.Errorf("failed to move auctions to %s: %w", to, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to move auctions to %s: %w", to, err)
	}
	return ids, nil
}

// GetAuction retrieves an auction by id
func (db *DB) GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error) {
	var a *models.Auction
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		var err error
		a, err = scanAuction(tx.QueryRow(ctx, "SELECT "+auctionColumns+" FROM auctions WHERE id = $1", auctionID))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get auction %d: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// ListAuctions pages through auctions, newest first; an empty status lists all
func (db *DB) ListAuctions(ctx context.Context, status models.AuctionStatus, limit, offset int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+auctionColumns+" FROM auctions WHERE ($1 = '' OR status = $1) ORDER BY id DESC LIMIT $2 OFFSET $3",
			string(status), limit, offset)
		if err != nil {
			return err
		}
		auctions, err = collectAuctions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

// ListAuctionsBySeller pages through a seller's auctions, newest first
func (db *DB) ListAuctionsBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+auctionColumns+" FROM auctions WHERE seller_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3",
			sellerID, limit, offset)
		if err != nil {
			return err
		}
		auctions, err = collectAuctions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list seller auctions: %w", err)
	}
	return auctions, nil
}

// RecentBids returns the latest bids on an auction, newest first
func (db *DB) RecentBids(ctx context.Context, auctionID int64, limit int) ([]models.Bid, error) {
	var bids []models.Bid
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+bidColumns+" FROM bids WHERE auction_id = $1 ORDER BY bid_time DESC, id DESC LIMIT $2",
			auctionID, limit)
		if err != nil {
			return err
		}
		bids, err = collectBids(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get auction bids: %w", err)
	}
	return bids, nil
}

// BidsByUser pages through a bidder's bids, newest first
func (db *DB) BidsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+bidColumns+" FROM bids WHERE bidder_id = $1 ORDER BY bid_time DESC, id DESC LIMIT $2 OFFSET $3",
			userID, limit, offset)
		if err != nil {
			return err
		}
		bids, err = collectBids(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user bids: %w", err)
	}
	return bids, nil
}

// CurrentWinningBid returns the winning bid of an auction, or nil when nobody has bid
func (db *DB) CurrentWinningBid(ctx context.Context, auctionID int64) (*models.Bid, error) {
	var b *models.Bid
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		var err error
		b, err = tx.WinningBid(ctx, auctionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BidStatistics counts bids and distinct bidders on an auction
func (db *DB) BidStatistics(ctx context.Context, auctionID int64) (models.BidStatistics, error) {
	var stats models.BidStatistics
	err := db.Router.InTx(ctx, ReadOnly, func(tx *Tx) error {
		return tx.QueryRow(ctx,
			"SELECT COUNT(*), COUNT(DISTINCT bidder_id) FROM bids WHERE auction_id = $1",
			auctionID).Scan(&stats.BidCount, &stats.UniqueBidders)
	})
	if err != nil {
		return models.BidStatistics{}, fmt.Errorf("failed to get bid statistics: %w", err)
	}
	return stats, nil
}
