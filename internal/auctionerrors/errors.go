package auctionerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error classes. Callers branch on these with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
	ErrBatchChunkFailure   = errors.New("batch chunk failed")
	ErrAlreadyRunning      = errors.New("run already in progress")
)

// Lookup misses
var (
	ErrAuctionNotFound = fmt.Errorf("auction %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// Business rule violations
var (
	ErrInvalidAuctionTime   = fmt.Errorf("%w: invalid auction time", ErrValidation)
	ErrInvalidPrice         = fmt.Errorf("%w: price must not be negative", ErrValidation)
	ErrInvalidBidAmount     = fmt.Errorf("%w: bid amount must be positive", ErrValidation)
	ErrAuctionNotActive     = fmt.Errorf("%w: auction is not active", ErrValidation)
	ErrSellerCannotBid      = fmt.Errorf("%w: seller cannot bid on own auction", ErrValidation)
	ErrBidTooLow            = fmt.Errorf("%w: bid amount too low", ErrValidation)
	ErrAlreadyWinningBidder = fmt.Errorf("%w: bidder already holds the winning bid", ErrValidation)
	ErrUsernameTaken        = fmt.Errorf("%w: username already taken", ErrValidation)
)

// BidTooLowError carries the minimum amount that would have been accepted
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: minimum required is %s", ErrBidTooLow, e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

// NewBidTooLow returns a BidTooLowError for the given minimum
func NewBidTooLow(minimum decimal.Decimal) error {
	return &BidTooLowError{Minimum: minimum}
}
