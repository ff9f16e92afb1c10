package trace

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// traceChannelBuffer is how many trace messages can queue before the
// background drain goroutine writes them to the store.
const traceChannelBuffer = 64

type traceMsg struct {
	kind string // "run_create", "run_end", "span"
	// run fields
	runID      string
	taskID     string
	durationMs float64
	status     string
	errMsg     string
	// span fields
	span Span
}

// Tracer writes trace data asynchronously via a buffered channel, one per
// task run. All methods are nil-safe (no-op on nil receiver), so the
// orchestrator can be built without a trace store configured.
type Tracer struct {
	store  *Store
	taskID string
	ch     chan traceMsg
	done   chan struct{}
}

// NewTracer creates a tracer bound to one task run. Callers MUST call
// Close() when done to flush pending writes and stop the drain goroutine.
func NewTracer(store *Store, taskID string) *Tracer {
	t := &Tracer{
		store:  store,
		taskID: taskID,
		ch:     make(chan traceMsg, traceChannelBuffer),
		done:   make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	if err := t.dispatch(m); err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

func (t *Tracer) dispatch(m traceMsg) error {
	switch m.kind {
	case "run_create":
		return t.store.CreateTaskRun(m.runID, m.taskID)
	case "run_end":
		return t.store.EndTaskRun(m.runID, m.durationMs, m.status, m.errMsg)
	case "span":
		return t.store.CreateSpan(m.span)
	}
	return nil
}

// StartRun begins a new run and returns its ID.
func (t *Tracer) StartRun() string {
	if t == nil {
		return ""
	}
	id := uuid.NewString()
	t.ch <- traceMsg{kind: "run_create", runID: id, taskID: t.taskID}
	return id
}

// EndRun finalizes a run.
func (t *Tracer) EndRun(runID string, durationMs float64, status, errMsg string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{kind: "run_end", runID: runID, durationMs: durationMs, status: status, errMsg: errMsg}
}

// RecordSpan records one pipeline stage's execution within a run.
func (t *Tracer) RecordSpan(runID, name string, startedAt time.Time, durationMs float64, batchCount int, status, errMsg string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{
		kind: "span",
		span: Span{
			ID:         uuid.NewString(),
			RunID:      runID,
			Name:       name,
			StartedAt:  startedAt,
			DurationMs: durationMs,
			BatchCount: batchCount,
			Status:     status,
			Error:      errMsg,
		},
	}
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}
