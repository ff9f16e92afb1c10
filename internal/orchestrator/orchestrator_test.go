package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/fetch"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
)

// fakeStore records every UpdateTaskStatus call so tests can assert the
// terminal status and error_message the orchestrator wrote.
type fakeStore struct {
	mu      sync.Mutex
	updates []statusUpdate
}

type statusUpdate struct {
	status domain.TaskStatus
	errMsg string
}

func (s *fakeStore) GetSegments(ctx context.Context, taskID string) ([]domain.Sentence, error) {
	return nil, nil
}
func (s *fakeStore) GetMediaPaths(ctx context.Context, taskID string) (domain.MediaPaths, error) {
	return domain.MediaPaths{}, nil
}
func (s *fakeStore) Download(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (s *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}
func (s *fakeStore) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{status: status, errMsg: errMsg})
	return nil
}

func (s *fakeStore) last() statusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

// fakeFetcher returns a fixed result or error in place of C2.
type fakeFetcher struct {
	result  *fetch.FetchResult
	err     error
	blockCh chan struct{} // if non-nil, Fetch blocks until this is closed
}

func (f *fakeFetcher) Fetch(ctx context.Context, taskID, scratchDir string) (*fetch.FetchResult, error) {
	if f.blockCh != nil {
		<-f.blockCh
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeProducer emits a fixed number of trivial batches onto an unbuffered
// channel, one at a time, as fast as the consumer (the aligner stage) reads.
type fakeProducer struct {
	count int
}

func (p *fakeProducer) Stream(ctx context.Context, sentences []domain.Sentence, scratchDir string) <-chan domain.Batch {
	out := make(chan domain.Batch)
	go func() {
		defer close(out)
		for i := 0; i < p.count; i++ {
			select {
			case out <- domain.Batch{Counter: i}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// countingAligner is an identity aligner that records how many batches it
// has processed, optionally pausing briefly per batch to widen the window
// in which a full Q2 applies back-pressure.
type countingAligner struct {
	mu    sync.Mutex
	n     int
	delay time.Duration
}

func (a *countingAligner) Align(ctx context.Context, batch domain.Batch) domain.Batch {
	a.mu.Lock()
	a.n++
	a.mu.Unlock()
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	return batch
}

func (a *countingAligner) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func newVideoFuture(err error) <-chan fetch.VideoResult {
	ch := make(chan fetch.VideoResult, 1)
	ch <- fetch.VideoResult{Err: err}
	return ch
}

func TestRun_FetchNotFoundMapsToFixedChineseMessage(t *testing.T) {
	store := &fakeStore{}
	orch := New(store, &fakeFetcher{err: fmt.Errorf("%w: task-1", perr.NotFound)}, &fakeProducer{}, &countingAligner{}, nil, Config{
		ScratchRoot: t.TempDir(),
	})

	err := orch.Run(context.Background(), "task-1")
	require.Error(t, err)

	last := store.last()
	assert.Equal(t, domain.TaskError, last.status)
	assert.Equal(t, "任务不存在", last.errMsg)
}

func TestRun_FetchStoreUnavailablePropagatesNonEmptyErrorMessage(t *testing.T) {
	store := &fakeStore{}
	orch := New(store, &fakeFetcher{err: fmt.Errorf("%w: read timeout", perr.StoreUnavailable)}, &fakeProducer{}, &countingAligner{}, nil, Config{
		ScratchRoot: t.TempDir(),
	})

	err := orch.Run(context.Background(), "task-2")
	require.Error(t, err)

	last := store.last()
	assert.Equal(t, domain.TaskError, last.status)
	assert.NotEmpty(t, last.errMsg)
	assert.NotEqual(t, "任务不存在", last.errMsg)
}

func TestRun_NoSegmentsProducedIsAnError(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{result: &fetch.FetchResult{
		Sentences:   nil,
		VideoFuture: newVideoFuture(fmt.Errorf("video unavailable in test")),
	}}
	orch := New(store, fetcher, &fakeProducer{count: 0}, &countingAligner{}, nil, Config{
		ScratchRoot: t.TempDir(),
	})

	err := orch.Run(context.Background(), "task-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, perr.MuxFailed)
}

func TestRun_RejectsSecondConcurrentRunOfSameTask(t *testing.T) {
	store := &fakeStore{}
	blockCh := make(chan struct{})
	fetcher := &fakeFetcher{blockCh: blockCh, err: fmt.Errorf("%w: unused", perr.StoreUnavailable)}
	orch := New(store, fetcher, &fakeProducer{}, &countingAligner{}, nil, Config{
		ScratchRoot: t.TempDir(),
	})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- orch.Run(context.Background(), "task-4")
	}()

	// Give the first Run a chance to claim the task before the second fires.
	for !orch.tasks.Running("task-4") {
		time.Sleep(time.Millisecond)
	}

	err := orch.Run(context.Background(), "task-4")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	close(blockCh)
	<-firstDone
}

func TestAlignStage_Q2CapacityBackPressuresTheAlignerOnceFull(t *testing.T) {
	const alignedQueueSize = 2
	const totalBatches = 20

	orch := New(&fakeStore{}, &fakeFetcher{}, &fakeProducer{}, &countingAligner{}, nil, Config{
		AlignedQueueSize: alignedQueueSize,
	})

	producer := &fakeProducer{count: totalBatches}
	aligner := &countingAligner{delay: 5 * time.Millisecond}
	orch.aligner = aligner

	ctx, cancel := context.WithCancel(context.Background())
	q1 := producer.Stream(ctx, nil, "")
	q2 := orch.alignStage(ctx, q1)

	// Do not drain q2 at all: once Q2 (capacity alignedQueueSize) fills and
	// one more aligned batch is blocked trying to send, the aligner's count
	// must stop advancing far short of totalBatches.
	time.Sleep(100 * time.Millisecond)
	stalled := aligner.count()

	assert.Less(t, stalled, totalBatches, "aligner should not have raced ahead of an undrained Q2")
	assert.LessOrEqual(t, stalled, alignedQueueSize+1,
		"aligner may fill Q2 (capacity %d) plus the one batch blocked mid-send, no more", alignedQueueSize)

	cancel()
	for range q2 {
	}
}
