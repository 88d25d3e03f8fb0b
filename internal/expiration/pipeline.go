package expiration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/logging"
)

const (
	DefaultChunkSize = 1000
	DefaultWorkers   = 4
)

// ErrRunAlreadyExecuted is returned when a run for the same cutoff was already claimed
var ErrRunAlreadyExecuted = errors.New("expiration run already executed for cutoff")

// runNamespace scopes run keys derived from cutoffs
var runNamespace = uuid.MustParse("6f1c2b1e-4a1d-5c53-9a57-0d6f3e8b2a41")

// RunKey is the uniqueness token of a run: the same cutoff always maps to the same key
func RunKey(cutoff time.Time) uuid.UUID {
	return uuid.NewSHA1(runNamespace, []byte(cutoff.UTC().Format(time.RFC3339Nano)))
}

// Options tunes a pipeline
type Options struct {
	ChunkSize int
	Workers   int
	// ChunksPerSecond throttles chunk dispatch; zero means unlimited
	ChunksPerSecond float64
}

// Phase says which half of a chunk failed
type Phase string

const (
	PhaseRead  Phase = "read"
	PhaseWrite Phase = "write"
)

// ChunkError reports one failed chunk. It matches auctionerrors.ErrBatchChunkFailure and the cause.
type ChunkError struct {
	Chunk   int
	FirstID int64
	LastID  int64
	Phase   Phase
	Err     error
}

func (e *ChunkError) Error() string {
	if e.Phase == PhaseRead {
		return fmt.Sprintf("chunk %d: read after id %d: %v", e.Chunk, e.FirstID-1, e.Err)
	}
	return fmt.Sprintf("chunk %d: write ids %d..%d: %v", e.Chunk, e.FirstID, e.LastID, e.Err)
}

func (e *ChunkError) Unwrap() []error {
	return []error{auctionerrors.ErrBatchChunkFailure, e.Err}
}

func (e *ChunkError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"chunk":    e.Chunk,
		"first_id": e.FirstID,
		"last_id":  e.LastID,
		"phase":    e.Phase,
		"error":    e.Err.Error(),
	})
}

// Report summarises a run
type Report struct {
	RunKey      uuid.UUID     `json:"run_key"`
	Cutoff      time.Time     `json:"cutoff"`
	Processed   int64         `json:"processed"`
	Chunks      int           `json:"chunks"`
	Elapsed     time.Duration `json:"elapsed"`
	ChunkErrors []*ChunkError `json:"chunk_errors,omitempty"`
}

// Partial reports whether some chunks failed
func (r *Report) Partial() bool {
	return len(r.ChunkErrors) > 0
}

// Pipeline ends expired auctions in keyset-paged chunks, each chunk committed on its own
type Pipeline struct {
	store   Store
	opts    Options
	limiter *rate.Limiter
	running atomic.Bool
}

// NewPipeline creates a pipeline; non-positive sizes fall back to the defaults
func NewPipeline(store Store, opts Options) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	p := &Pipeline{store: store, opts: opts}
	if opts.ChunksPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.ChunksPerSecond), 1)
	}
	return p
}

// IsRunning reports whether a run is in flight
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// Run ends every ACTIVE auction whose end time is at or before cutoff. A failed chunk is recorded in
// the report and does not stop the others. Once started, the run ignores cancellation of ctx.
func (p *Pipeline) Run(ctx context.Context, cutoff time.Time) (*Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, auctionerrors.ErrAlreadyRunning
	}
	defer p.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	// the store keeps microseconds
	cutoff = cutoff.Truncate(time.Microsecond)
	report := &Report{RunKey: RunKey(cutoff), Cutoff: cutoff}

	claimed, err := p.store.ClaimRun(ctx, report.RunKey, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to start expiration run: %w", err)
	}
	if !claimed {
		logging.Info("Expiration run already executed, skipping", map[string]any{
			"run_key": report.RunKey.String(),
			"cutoff":  cutoff,
		})
		return nil, ErrRunAlreadyExecuted
	}

	started := time.Now()
	logging.Info("Expiration run started", map[string]any{
		"run_key":    report.RunKey.String(),
		"cutoff":     cutoff,
		"chunk_size": p.opts.ChunkSize,
		"workers":    p.opts.Workers,
	})

	var (
		processed atomic.Int64
		mu        sync.Mutex
	)
	fail := func(ce *ChunkError) {
		logging.Warn("Expiration chunk failed", map[string]any{
			"run_key":  report.RunKey.String(),
			"chunk":    ce.Chunk,
			"phase":    ce.Phase,
			"first_id": ce.FirstID,
			"last_id":  ce.LastID,
			"error":    ce.Err.Error(),
		})
		mu.Lock()
		report.ChunkErrors = append(report.ChunkErrors, ce)
		mu.Unlock()
	}

	g := &errgroup.Group{}
	g.SetLimit(p.opts.Workers)

	var afterID int64
	for chunk := 0; ; chunk++ {
		ids, err := p.store.ExpiredAuctionIDs(ctx, cutoff, afterID, p.opts.ChunkSize)
		if err != nil {
			// without the page there is no cursor to continue from
			fail(&ChunkError{Chunk: chunk, FirstID: afterID + 1, Phase: PhaseRead, Err: err})
			break
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]
		report.Chunks++

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				logging.Warn("Chunk throttle failed", map[string]any{"error": err.Error()})
			}
		}

		chunk := chunk // per-iteration copy; go.mod targets go1.21 loop semantics
		g.Go(func() error {
			n, err := p.store.EndAuctions(ctx, ids, cutoff)
			if err != nil {
				fail(&ChunkError{Chunk: chunk, FirstID: ids[0], LastID: ids[len(ids)-1], Phase: PhaseWrite, Err: err})
				return nil
			}
			processed.Add(n)
			return nil
		})
		if len(ids) < p.opts.ChunkSize {
			break
		}
	}
	_ = g.Wait()

	sort.Slice(report.ChunkErrors, func(i, j int) bool {
		return report.ChunkErrors[i].Chunk < report.ChunkErrors[j].Chunk
	})
	report.Processed = processed.Load()
	report.Elapsed = time.Since(started)

	if err := p.store.FinishRun(ctx, report.RunKey, report.Processed, len(report.ChunkErrors)); err != nil {
		logging.Error("Failed to record expiration run", map[string]any{
			"run_key": report.RunKey.String(),
			"error":   err.Error(),
		})
	}

	fields := map[string]any{
		"run_key":       report.RunKey.String(),
		"processed":     report.Processed,
		"chunks":        report.Chunks,
		"failed_chunks": len(report.ChunkErrors),
		"elapsed":       report.Elapsed.String(),
	}
	if report.Partial() {
		logging.Warn("Expiration run finished with failed chunks", fields)
	} else {
		logging.Info("Expiration run finished", fields)
	}
	return report, nil
}
