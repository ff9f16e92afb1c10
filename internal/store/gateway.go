// Package store is the Store Gateway (C1): the only component that speaks
// the wire protocol of the transcription KV store and the object store.
// Every other component takes a *Gateway handle.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
)

// Gateway is constructed once per process and shared across tasks.
type Gateway struct {
	db  *sql.DB
	obj *objectStore
}

// Open connects to both backing stores. The Postgres DSN and the S3-compatible
// endpoint/bucket/region are read from Config by the caller.
func Open(ctx context.Context, postgresDSN, s3Endpoint, s3Region, s3Bucket string) (*Gateway, error) {
	db, err := openPostgres(postgresDSN)
	if err != nil {
		return nil, err
	}
	obj, err := openObjectStore(ctx, s3Endpoint, s3Region, s3Bucket)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Gateway{db: db, obj: obj}, nil
}

// Close releases the Postgres connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// CreateTask inserts a fresh pending row. This is not part of the original
// pipeline contract (which takes task existence as given) but gives the
// HTTP trigger surface somewhere to write the initial row.
func (g *Gateway) CreateTask(ctx context.Context, taskID, transcriptionID, targetLanguage string) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO media_tasks (id, status, transcription_id, target_language)
		VALUES ($1, 'pending', $2, $3)
	`, taskID, transcriptionID, targetLanguage)
	if err != nil {
		return fmt.Errorf("%w: create task: %v", perr.StoreUnavailable, err)
	}
	return nil
}

// GetSegments returns the sentences of a task ordered by sequence, with
// target_duration_ms derived and is_last set on the highest-sequence row.
// It fails with perr.NotFound if the task is unknown and
// perr.StoreUnavailable on transport error.
func (g *Gateway) GetSegments(ctx context.Context, taskID string) ([]domain.Sentence, error) {
	var transcriptionID string
	var totalSegments int
	err := g.db.QueryRowContext(ctx, `
		SELECT t.transcription_id, tr.total_segments
		FROM media_tasks t JOIN transcriptions tr ON tr.id = t.transcription_id
		WHERE t.id = $1
	`, taskID).Scan(&transcriptionID, &totalSegments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", perr.NotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup task: %v", perr.StoreUnavailable, err)
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT sequence, start_ms, end_ms, speaker, original_text, translated_text
		FROM transcription_segments
		WHERE transcription_id = $1 AND content_type = 'speech'
		ORDER BY sequence
	`, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: read segments: %v", perr.StoreUnavailable, err)
	}
	defer rows.Close()

	var sentences []domain.Sentence
	for rows.Next() {
		var s domain.Sentence
		if err := rows.Scan(&s.Sequence, &s.StartMs, &s.EndMs, &s.Speaker, &s.OriginalText, &s.TranslatedText); err != nil {
			return nil, fmt.Errorf("%w: scan segment: %v", perr.StoreUnavailable, err)
		}
		s.TaskID = taskID
		s.TargetDurationMs = s.EndMs - s.StartMs
		sentences = append(sentences, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", perr.StoreUnavailable, err)
	}
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: task %s", perr.EmptyTranscription, taskID)
	}

	sentences[0].IsFirst = true
	sentences[len(sentences)-1].IsLast = true
	return sentences, nil
}

// GetMediaPaths returns the task's opaque object-store keys.
func (g *Gateway) GetMediaPaths(ctx context.Context, taskID string) (domain.MediaPaths, error) {
	var mp domain.MediaPaths
	err := g.db.QueryRowContext(ctx, `
		SELECT audio_path, video_path FROM media_tasks WHERE id = $1
	`, taskID).Scan(&mp.AudioPath, &mp.VideoPath)
	if errors.Is(err, sql.ErrNoRows) {
		return mp, fmt.Errorf("%w: %s", perr.NotFound, taskID)
	}
	if err != nil {
		return mp, fmt.Errorf("%w: %v", perr.StoreUnavailable, err)
	}
	if mp.AudioPath == "" || mp.VideoPath == "" {
		return mp, fmt.Errorf("%w: task %s missing media paths", perr.NotFound, taskID)
	}
	return mp, nil
}

// Download fetches an object-store key in full.
func (g *Gateway) Download(ctx context.Context, key string) ([]byte, error) {
	return g.obj.download(ctx, key)
}

// Upload writes an object-store key.
func (g *Gateway) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return g.obj.upload(ctx, key, data, contentType)
}

// UpdateTaskStatus is idempotent and retried with exponential backoff
// (3 attempts, factor 2x) since it is the last write the orchestrator makes
// on a task and must not be silently dropped.
func (g *Gateway) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error {
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := g.db.ExecContext(ctx, `
			UPDATE media_tasks SET status = $1, error_message = $2, updated_at = now() WHERE id = $3
		`, status, errMsg, taskID)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: update status after retries: %v", perr.StoreUnavailable, lastErr)
}

// GetTask returns the full task row, used by the HTTP status handler.
func (g *Gateway) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	var t domain.Task
	var status string
	err := g.db.QueryRowContext(ctx, `
		SELECT id, status, transcription_id, audio_path, video_path, error_message, target_language, created_at, updated_at
		FROM media_tasks WHERE id = $1
	`, taskID).Scan(&t.ID, &status, &t.TranscriptionID, &t.AudioPath, &t.VideoPath, &t.ErrorMessage, &t.TargetLanguage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", perr.NotFound, taskID)
	}
	if err != nil {
		return t, fmt.Errorf("%w: %v", perr.StoreUnavailable, err)
	}
	t.Status = domain.TaskStatus(status)
	if t.Status == domain.TaskProcessing || t.Status == domain.TaskCompleted {
		t.HLSPlaylistURL = fmt.Sprintf("hls/%s/index.m3u8", t.ID)
	}
	return t, nil
}
