package bidding

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/db"
	"github.com/xtrntr/auction/internal/logging"
	"github.com/xtrntr/auction/internal/models"
)

// Engine settles bids against auctions
type Engine struct {
	DB *db.DB
}

// NewEngine creates a new settlement engine
func NewEngine(database *db.DB) *Engine {
	return &Engine{DB: database}
}

// PlaceBid validates and commits a bid. The auction row stays locked from the first read used for
// validation until the new bid, the demotion of the previous winner and the auction totals commit.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal) (*models.Bid, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("service: %w", auctionerrors.ErrInvalidBidAmount)
	}

	var bid *models.Bid
	var auction *models.Auction
	err := e.DB.Router.InTx(ctx, db.ReadWrite, func(tx *db.Tx) error {
		locked, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}

		exists, err := tx.UserExists(ctx, bidderID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("bidder %d: %w", bidderID, auctionerrors.ErrUserNotFound)
		}

		winning, err := tx.WinningBid(ctx, auctionID)
		if err != nil {
			return err
		}
		if err := validateBid(locked, bidderID, amount, winning); err != nil {
			return err
		}

		if winning != nil {
			if err := tx.DemoteBid(ctx, winning.ID); err != nil {
				return err
			}
		}
		if bid, err = tx.InsertWinningBid(ctx, auctionID, bidderID, amount); err != nil {
			return err
		}
		auction, err = tx.ApplyWinningBid(ctx, auctionID, amount, bidderID)
		return err
	})
	if err != nil {
		logging.Warn("Bid rejected", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
			"amount":     amount.String(),
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("service: failed to place bid on auction %d: %w", auctionID, err)
	}

	logging.Info("Bid placed", map[string]any{
		"auction_id":    auctionID,
		"bid_id":        bid.ID,
		"bidder_id":     bidderID,
		"amount":        amount.String(),
		"bid_count":     auction.BidCount,
		"current_price": auction.CurrentPrice.String(),
	})
	return bid, nil
}

// validateBid applies the business rules, in order, to a locked auction snapshot
func validateBid(auction *models.Auction, bidderID int64, amount decimal.Decimal, winning *models.Bid) error {
	if auction.Status != models.StatusActive {
		return auctionerrors.ErrAuctionNotActive
	}
	if auction.SellerID == bidderID {
		return auctionerrors.ErrSellerCannotBid
	}
	if minimum := auction.MinimumNextBid(); amount.LessThan(minimum) {
		return auctionerrors.NewBidTooLow(minimum)
	}
	if winning != nil && winning.BidderID == bidderID {
		return auctionerrors.ErrAlreadyWinningBidder
	}
	return nil
}
