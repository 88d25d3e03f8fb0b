package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	StatusPending AuctionStatus = "PENDING"
	StatusActive  AuctionStatus = "ACTIVE"
	StatusEnded   AuctionStatus = "ENDED"
)

// Valid reports whether s is one of the known statuses
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded:
		return true
	}
	return false
}

// rank orders statuses along PENDING -> ACTIVE -> ENDED
func (s AuctionStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusEnded:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward step of the state machine
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	return next.rank() == s.rank()+1 && s.Valid()
}

// User represents a registered user; sellers and bidders are both users
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Auction represents a timed listing
type Auction struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MinBidIncrement decimal.Decimal `json:"min_bid_increment"`
	SellerID        int64           `json:"seller_id"`
	Status          AuctionStatus   `json:"status"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	BidCount        int             `json:"bid_count"`
	WinnerID        *int64          `json:"winner_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MinimumNextBid is the lowest amount the next bid may carry
func (a *Auction) MinimumNextBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinBidIncrement)
}

// Bid represents a single bid on an auction
type Bid struct {
	ID        int64           `json:"id"`
	AuctionID int64           `json:"auction_id"`
	BidderID  int64           `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	BidTime   time.Time       `json:"bid_time"`
	IsWinning bool            `json:"is_winning"`
}

// BidStatistics summarizes bidding activity on one auction
type BidStatistics struct {
	BidCount      int64 `json:"bid_count"`
	UniqueBidders int64 `json:"unique_bidders"`
}
