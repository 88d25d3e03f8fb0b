package expiration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/logging"
)

// Runner is what the trigger drives; *Pipeline implements it
type Runner interface {
	Run(ctx context.Context, cutoff time.Time) (*Report, error)
	IsRunning() bool
}

// Trigger invokes a runner on a fixed interval and never overlaps runs
type Trigger struct {
	runner   Runner
	interval time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewTrigger creates a trigger firing every interval
func NewTrigger(runner Runner, interval time.Duration) *Trigger {
	return &Trigger{runner: runner, interval: interval, now: time.Now}
}

// Start ticks until ctx is done, then waits for the run in flight, if any
func (t *Trigger) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	logging.Info("Expiration scheduler started", map[string]any{"interval": t.interval.String()})
	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			logging.Info("Expiration scheduler stopped", nil)
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick starts a run in the background with the current time as cutoff, unless one is in flight.
// It reports whether a run was started.
func (t *Trigger) Tick(ctx context.Context) bool {
	if t.runner.IsRunning() {
		logging.Info("Expiration run still in progress, skipping tick", nil)
		return false
	}

	cutoff := t.now()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, err := t.runner.Run(ctx, cutoff)
		switch {
		case err == nil:
		case errors.Is(err, auctionerrors.ErrAlreadyRunning):
			logging.Info("Expiration run still in progress, skipping tick", nil)
		case errors.Is(err, ErrRunAlreadyExecuted):
		default:
			logging.Error("Expiration run failed", map[string]any{"cutoff": cutoff, "error": err.Error()})
		}
	}()
	return true
}

// Wait blocks until the run started by the last Tick returns
func (t *Trigger) Wait() {
	t.wg.Wait()
}
