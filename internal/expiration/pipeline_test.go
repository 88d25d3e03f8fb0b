package expiration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/auction/internal/auctionerrors"
)

var testCutoff = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRunKey(t *testing.T) {
	same := testCutoff.In(time.FixedZone("UTC+8", 8*60*60))
	assert.Equal(t, RunKey(testCutoff), RunKey(same), "key does not depend on the location")
	assert.NotEqual(t, RunKey(testCutoff), RunKey(testCutoff.Add(time.Microsecond)))
	assert.Equal(t, uuid.Version(5), RunKey(testCutoff).Version())
}

func TestPipeline_Run(t *testing.T) {
	boom := errors.New("connection reset")
	key := RunKey(testCutoff)

	tests := []struct {
		name          string
		mockSetup     func(m *MockStoreMockRecorder)
		wantProcessed int64
		wantChunks    int
		wantFailed    []int
		wantPhase     Phase
	}{
		{
			name: "AllChunksSucceed",
			mockSetup: func(m *MockStoreMockRecorder) {
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 2).Return([]int64{1, 2}, nil)
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(2), 2).Return([]int64{3, 4}, nil)
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(4), 2).Return([]int64{5}, nil)
				m.EndAuctions(gomock.Any(), []int64{1, 2}, testCutoff).Return(int64(2), nil)
				m.EndAuctions(gomock.Any(), []int64{3, 4}, testCutoff).Return(int64(2), nil)
				m.EndAuctions(gomock.Any(), []int64{5}, testCutoff).Return(int64(1), nil)
				m.FinishRun(gomock.Any(), key, int64(5), 0).Return(nil)
			},
			wantProcessed: 5,
			wantChunks:    3,
		},
		{
			name: "FullLastPageReadsOnceMore",
			mockSetup: func(m *MockStoreMockRecorder) {
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 2).Return([]int64{7, 9}, nil)
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(9), 2).Return(nil, nil)
				m.EndAuctions(gomock.Any(), []int64{7, 9}, testCutoff).Return(int64(2), nil)
				m.FinishRun(gomock.Any(), key, int64(2), 0).Return(nil)
			},
			wantProcessed: 2,
			wantChunks:    1,
		},
		{
			name: "NothingExpired",
			mockSetup: func(m *MockStoreMockRecorder) {
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 2).Return([]int64{}, nil)
				m.FinishRun(gomock.Any(), key, int64(0), 0).Return(nil)
			},
		},
		{
			name: "WriteFailureDoesNotStopOtherChunks",
			mockSetup: func(m *MockStoreMockRecorder) {
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 2).Return([]int64{1, 2}, nil)
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(2), 2).Return([]int64{3, 4}, nil)
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(4), 2).Return([]int64{5}, nil)
				m.EndAuctions(gomock.Any(), []int64{1, 2}, testCutoff).Return(int64(2), nil)
				m.EndAuctions(gomock.Any(), []int64{3, 4}, testCutoff).Return(int64(0), boom)
				m.EndAuctions(gomock.Any(), []int64{5}, testCutoff).Return(int64(1), nil)
				m.FinishRun(gomock.Any(), key, int64(3), 1).Return(nil)
			},
			wantProcessed: 3,
			wantChunks:    3,
			wantFailed:    []int{1},
			wantPhase:     PhaseWrite,
		},
		{
			name: "ReadFailureStopsPaging",
			mockSetup: func(m *MockStoreMockRecorder) {
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 2).Return([]int64{1, 2}, nil)
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(2), 2).Return(nil, boom)
				m.EndAuctions(gomock.Any(), []int64{1, 2}, testCutoff).Return(int64(2), nil)
				m.FinishRun(gomock.Any(), key, int64(2), 1).Return(nil)
			},
			wantProcessed: 2,
			wantChunks:    1,
			wantFailed:    []int{1},
			wantPhase:     PhaseRead,
		},
		{
			name: "FinishFailureStillReports",
			mockSetup: func(m *MockStoreMockRecorder) {
				m.ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 2).Return([]int64{1}, nil)
				m.EndAuctions(gomock.Any(), []int64{1}, testCutoff).Return(int64(1), nil)
				m.FinishRun(gomock.Any(), key, int64(1), 0).Return(boom)
			},
			wantProcessed: 1,
			wantChunks:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := NewMockStore(ctrl)
			store.EXPECT().ClaimRun(gomock.Any(), key, testCutoff).Return(true, nil)
			tt.mockSetup(store.EXPECT())

			p := NewPipeline(store, Options{ChunkSize: 2, Workers: 2})
			report, err := p.Run(context.Background(), testCutoff)
			require.NoError(t, err)

			assert.Equal(t, key, report.RunKey)
			assert.Equal(t, tt.wantProcessed, report.Processed)
			assert.Equal(t, tt.wantChunks, report.Chunks)
			assert.Equal(t, len(tt.wantFailed) > 0, report.Partial())
			require.Len(t, report.ChunkErrors, len(tt.wantFailed))
			for i, chunk := range tt.wantFailed {
				ce := report.ChunkErrors[i]
				assert.Equal(t, chunk, ce.Chunk)
				assert.Equal(t, tt.wantPhase, ce.Phase)
				assert.ErrorIs(t, ce, auctionerrors.ErrBatchChunkFailure)
				assert.ErrorIs(t, ce, boom)
			}
			assert.False(t, p.IsRunning())
		})
	}
}

func TestPipeline_RunSameCutoffTwice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().ClaimRun(gomock.Any(), RunKey(testCutoff), testCutoff).Return(false, nil)

	report, err := NewPipeline(store, Options{}).Run(context.Background(), testCutoff)
	assert.ErrorIs(t, err, ErrRunAlreadyExecuted)
	assert.Nil(t, report)
}

func TestPipeline_ClaimFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().ClaimRun(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

	p := NewPipeline(store, Options{})
	_, err := p.Run(context.Background(), testCutoff)
	assert.Error(t, err)
	assert.False(t, p.IsRunning())
}

func TestPipeline_RunWhileRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	release := make(chan struct{})
	store := NewMockStore(ctrl)
	store.EXPECT().ClaimRun(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	store.EXPECT().ExpiredAuctionIDs(gomock.Any(), gomock.Any(), int64(0), DefaultChunkSize).
		DoAndReturn(func(context.Context, time.Time, int64, int) ([]int64, error) {
			<-release
			return nil, nil
		})
	store.EXPECT().FinishRun(gomock.Any(), gomock.Any(), int64(0), 0).Return(nil)

	p := NewPipeline(store, Options{})
	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), testCutoff)
		done <- err
	}()

	assert.Eventually(t, p.IsRunning, time.Second, 5*time.Millisecond)
	_, err := p.Run(context.Background(), testCutoff.Add(time.Minute))
	assert.ErrorIs(t, err, auctionerrors.ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, p.IsRunning())
}

func TestPipeline_RunIgnoresCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	store.EXPECT().ClaimRun(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	store.EXPECT().ExpiredAuctionIDs(gomock.Any(), testCutoff, int64(0), 10).
		DoAndReturn(func(ctx context.Context, _ time.Time, _ int64, _ int) ([]int64, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []int64{1, 2, 3}, nil
		})
	store.EXPECT().EndAuctions(gomock.Any(), []int64{1, 2, 3}, testCutoff).Return(int64(3), nil)
	store.EXPECT().FinishRun(gomock.Any(), gomock.Any(), int64(3), 0).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewPipeline(store, Options{ChunkSize: 10}).Run(ctx, testCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Processed)
}

// pagedStore serves ids 1..total and records how many chunk writes overlap
type pagedStore struct {
	total    int64
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	ended    map[int64]bool
}

func (s *pagedStore) ExpiredAuctionIDs(_ context.Context, _ time.Time, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	for id := afterID + 1; id <= s.total && len(ids) < limit; id++ {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *pagedStore) EndAuctions(_ context.Context, ids []int64, _ time.Time) (int64, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	var ended int64
	for _, id := range ids {
		if !s.ended[id] {
			s.ended[id] = true
			ended++
		}
	}
	return ended, nil
}

func (s *pagedStore) ClaimRun(context.Context, uuid.UUID, time.Time) (bool, error) { return true, nil }

func (s *pagedStore) FinishRun(context.Context, uuid.UUID, int64, int) error { return nil }

func TestPipeline_WorkerPoolBound(t *testing.T) {
	store := &pagedStore{total: 95, ended: map[int64]bool{}}

	report, err := NewPipeline(store, Options{ChunkSize: 10, Workers: 3}).Run(context.Background(), testCutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(95), report.Processed)
	assert.Equal(t, 10, report.Chunks)
	assert.Len(t, store.ended, 95)
	assert.LessOrEqual(t, store.maxSeen.Load(), int32(3))
	assert.Greater(t, store.maxSeen.Load(), int32(1), "chunks run concurrently")
}

func TestPipeline_Throttle(t *testing.T) {
	store := &pagedStore{total: 4, ended: map[int64]bool{}}

	start := time.Now()
	report, err := NewPipeline(store, Options{ChunkSize: 1, Workers: 4, ChunksPerSecond: 20}).Run(context.Background(), testCutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(4), report.Processed)
	// burst of one, then a chunk every 50ms
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}
