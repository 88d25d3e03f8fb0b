package auctionerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class error
	}{
		{name: "AuctionNotFound", err: ErrAuctionNotFound, class: ErrNotFound},
		{name: "UserNotFound", err: ErrUserNotFound, class: ErrNotFound},
		{name: "InvalidAuctionTime", err: ErrInvalidAuctionTime, class: ErrValidation},
		{name: "AuctionNotActive", err: ErrAuctionNotActive, class: ErrValidation},
		{name: "SellerCannotBid", err: ErrSellerCannotBid, class: ErrValidation},
		{name: "AlreadyWinningBidder", err: ErrAlreadyWinningBidder, class: ErrValidation},
		{name: "BidTooLow", err: NewBidTooLow(decimal.NewFromInt(1010)), class: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.class)
			assert.NotErrorIs(t, wrapped, ErrConcurrencyConflict)
		})
	}
}

func TestBidTooLowError(t *testing.T) {
	err := fmt.Errorf("place bid: %w", NewBidTooLow(decimal.NewFromInt(1060)))

	var tooLow *BidTooLowError
	assert.True(t, errors.As(err, &tooLow))
	assert.True(t, decimal.NewFromInt(1060).Equal(tooLow.Minimum))
	assert.ErrorIs(t, err, ErrBidTooLow)
	assert.Contains(t, err.Error(), "1060.00")
}
