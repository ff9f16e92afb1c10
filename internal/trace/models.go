package trace

import "time"

// TaskRun represents one execution of the orchestrator's pipeline for a
// single task_id, from fetch through final merge.
type TaskRun struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DurationMs float64    `json:"duration_ms,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	SpanCount  int        `json:"span_count,omitempty"`
}

// Span represents one pipeline stage's execution within a TaskRun: a single
// fetch, a TTS batch, an align pass, a mixer batch, or an HLS segment add.
type Span struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	BatchCount int       `json:"batch_count,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}
