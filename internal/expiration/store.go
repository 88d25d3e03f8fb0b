package expiration

//go:generate mockgen -source=store.go -destination=mock_store_test.go -package=expiration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence the pipeline needs; *db.DB implements it
type Store interface {
	// ExpiredAuctionIDs returns up to limit ids of ACTIVE auctions ended by cutoff, ascending after afterID
	ExpiredAuctionIDs(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]int64, error)
	// EndAuctions ends one chunk in its own transaction and returns the number of rows ended
	EndAuctions(ctx context.Context, ids []int64, cutoff time.Time) (int64, error)
	ClaimRun(ctx context.Context, runKey uuid.UUID, cutoff time.Time) (bool, error)
	FinishRun(ctx context.Context, runKey uuid.UUID, processed int64, failedChunks int) error
}
