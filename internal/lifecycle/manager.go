package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/db"
	"github.com/xtrntr/auction/internal/logging"
	"github.com/xtrntr/auction/internal/models"
)

// incrementRate is the share of the starting price every bid must add
var incrementRate = decimal.NewFromFloat(0.01)

// NewAuction holds the fields a seller supplies when listing an auction
type NewAuction struct {
	SellerID      int64
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
}

// StatusUpdate lists the auctions moved by one AdvanceExpiredStatuses pass
type StatusUpdate struct {
	Activated []int64 `json:"activated"`
	Ended     []int64 `json:"ended"`
}

// Manager drives auctions through PENDING -> ACTIVE -> ENDED
type Manager struct {
	DB  *db.DB
	now func() time.Time
}

// NewManager creates a new lifecycle manager
func NewManager(database *db.DB) *Manager {
	return &Manager{DB: database, now: time.Now}
}

// CreateAuction lists a new PENDING auction for an existing seller
func (m *Manager) CreateAuction(ctx context.Context, in NewAuction) (*models.Auction, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateNewAuction(in, m.now()); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	var created *models.Auction
	err := m.DB.Router.InTx(ctx, db.ReadWrite, func(tx *db.Tx) error {
		exists, err := tx.UserExists(ctx, in.SellerID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("seller %d: %w", in.SellerID, auctionerrors.ErrUserNotFound)
		}
		created, err = tx.InsertAuction(ctx, &models.Auction{
			Title:           in.Title,
			Description:     in.Description,
			StartingPrice:   in.StartingPrice,
			CurrentPrice:    in.StartingPrice,
			MinBidIncrement: in.StartingPrice.Mul(incrementRate).Round(2),
			SellerID:        in.SellerID,
			Status:          models.StatusPending,
			StartTime:       in.StartTime,
			EndTime:         in.EndTime,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to create auction: %w", err)
	}

	logging.Info("Auction created", map[string]any{
		"auction_id": created.ID,
		"seller_id":  created.SellerID,
		"start_time": created.StartTime,
		"end_time":   created.EndTime,
	})
	return created, nil
}

func validateNewAuction(in NewAuction, now time.Time) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", auctionerrors.ErrValidation)
	}
	if in.StartingPrice.IsNegative() {
		return auctionerrors.ErrInvalidPrice
	}
	if !in.EndTime.After(in.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", auctionerrors.ErrInvalidAuctionTime)
	}
	if !in.StartTime.After(now) {
		return fmt.Errorf("%w: start time must be in the future", auctionerrors.ErrInvalidAuctionTime)
	}
	return nil
}

// EndAuction ends an ACTIVE auction on request. Ending an ENDED auction returns it unchanged.
// The row lock is the one bid settlement takes, so an end waits for an in-flight settlement and
// a later settlement sees the ENDED status.
func (m *Manager) EndAuction(ctx context.Context, auctionID int64) (*models.Auction, error) {
	var auction *models.Auction
	alreadyEnded := false
	err := m.DB.Router.InTx(ctx, db.ReadWrite, func(tx *db.Tx) error {
		locked, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		switch locked.Status {
		case models.StatusEnded:
			auction, alreadyEnded = locked, true
			return nil
		case models.StatusPending:
			return auctionerrors.ErrAuctionNotActive
		}
		auction, err = tx.SetAuctionStatus(ctx, auctionID, locked.Status, models.StatusEnded)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to end auction %d: %w", auctionID, err)
	}

	if !alreadyEnded {
		logging.Info("Auction ended", map[string]any{
			"auction_id":    auctionID,
			"bid_count":     auction.BidCount,
			"current_price": auction.CurrentPrice.String(),
		})
	}
	return auction, nil
}

// AdvanceExpiredStatuses activates started auctions and ends expired ones as of now, in one transaction
func (m *Manager) AdvanceExpiredStatuses(ctx context.Context, now time.Time) (*StatusUpdate, error) {
	update := &StatusUpdate{}
	err := m.DB.Router.InTx(ctx, db.ReadWrite, func(tx *db.Tx) error {
		var err error
		if update.Activated, err = tx.ActivatePending(ctx, now); err != nil {
			return err
		}
		update.Ended, err = tx.EndExpired(ctx, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to update auction statuses: %w", err)
	}

	logging.Info("Auction statuses updated", map[string]any{
		"now":       now,
		"activated": len(update.Activated),
		"ended":     len(update.Ended),
	})
	return update, nil
}
