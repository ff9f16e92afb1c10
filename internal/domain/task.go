package domain

import "time"

// TaskStatus is one of the terminal-or-transient states of the Task state
// machine. Only the orchestrator writes task state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// Task is the row-level record of one dubbing job.
type Task struct {
	ID              string     `json:"task_id"`
	Status          TaskStatus `json:"status"`
	TranscriptionID string     `json:"transcription_id,omitempty"`
	AudioPath       string     `json:"-"`
	VideoPath       string     `json:"-"`
	TargetLanguage  string     `json:"target_language,omitempty"`
	HLSPlaylistURL  string     `json:"hls_playlist_url,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MediaPaths is the pair of opaque object-store keys a task resolves to.
type MediaPaths struct {
	AudioPath string
	VideoPath string
}
