package bidding

import (
	"context"
	"fmt"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/models"
)

// RecentBidLimit caps RecentBids
const RecentBidLimit = 10

// RecentBids returns the latest bids of an auction, newest first
func (e *Engine) RecentBids(ctx context.Context, auctionID int64) ([]models.Bid, error) {
	bids, err := e.DB.RecentBids(ctx, auctionID, RecentBidLimit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %d: %w", auctionID, err)
	}
	return bids, nil
}

// BidsByUser pages through a user's bids, newest first
func (e *Engine) BidsByUser(ctx context.Context, userID int64, page, size int) ([]models.Bid, error) {
	if page < 0 || size <= 0 {
		return nil, fmt.Errorf("service: %w: invalid page", auctionerrors.ErrValidation)
	}
	bids, err := e.DB.BidsByUser(ctx, userID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %d: %w", userID, err)
	}
	return bids, nil
}

// CurrentWinningBid returns the winning bid, or nil when the auction has no bids
func (e *Engine) CurrentWinningBid(ctx context.Context, auctionID int64) (*models.Bid, error) {
	bid, err := e.DB.CurrentWinningBid(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get winning bid for auction %d: %w", auctionID, err)
	}
	return bid, nil
}

// Statistics counts bids and distinct bidders of an auction
func (e *Engine) Statistics(ctx context.Context, auctionID int64) (models.BidStatistics, error) {
	stats, err := e.DB.BidStatistics(ctx, auctionID)
	if err != nil {
		return models.BidStatistics{}, fmt.Errorf("service: failed to get statistics for auction %d: %w", auctionID, err)
	}
	return stats, nil
}
