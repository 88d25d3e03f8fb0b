package lifecycle

import (
	"context"
	"fmt"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/models"
)

// MaxPageSize caps list operations
const MaxPageSize = 100

// GetAuction retrieves an auction by id
func (m *Manager) GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error) {
	a, err := m.DB.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return a, nil
}

// ListAuctions pages through auctions, optionally filtered by status
func (m *Manager) ListAuctions(ctx context.Context, status models.AuctionStatus, page, size int) ([]models.Auction, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("service: %w: unknown status %q", auctionerrors.ErrValidation, status)
	}
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}
	auctions, err := m.DB.ListAuctions(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// ListAuctionsBySeller pages through a seller's auctions
func (m *Manager) ListAuctionsBySeller(ctx context.Context, sellerID int64, page, size int) ([]models.Auction, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}
	auctions, err := m.DB.ListAuctionsBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions for seller %d: %w", sellerID, err)
	}
	return auctions, nil
}

func pageBounds(page, size int) (limit, offset int, err error) {
	if page < 0 || size <= 0 {
		return 0, 0, fmt.Errorf("service: %w: invalid page", auctionerrors.ErrValidation)
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size, page * size, nil
}
