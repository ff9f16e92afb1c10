package hls

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/metrics"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
	"github.com/hubenschmidt/dubstream-gateway/internal/procx"
)

const defaultConcurrentUploads = 3
const uploadDrainTimeout = 60 * time.Second

// SegmentFile is one .ts part produced by the segmenter for a single MP4.
type SegmentFile struct {
	Filename    string
	Path        string
	DurationSec float64
}

// ObjectStore is the subset of the Store Gateway the publisher needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// Publisher drives one task's HLS output: segmenting, playlist maintenance,
// and bounded-concurrency uploads.
type Publisher struct {
	taskID     string
	segDir     string
	store      ObjectStore
	runner     *procx.Runner
	playlist   *Playlist

	uploadSem  chan struct{}
	uploadWG   sync.WaitGroup
	uploadMu   sync.Mutex
	uploadErrs []error

	allMP4s []string
}

// New constructs a Publisher and resumes any existing playlist for taskID by
// downloading and parsing it; absent one, it starts empty. uploadConcurrency
// sizes the bounded-concurrency upload semaphore (UPLOAD_CONCURRENCY); a
// value ≤ 0 falls back to defaultConcurrentUploads.
func New(ctx context.Context, taskID, segDir string, store ObjectStore, runner *procx.Runner, uploadConcurrency int) *Publisher {
	if uploadConcurrency <= 0 {
		uploadConcurrency = defaultConcurrentUploads
	}
	p := &Publisher{
		taskID:    taskID,
		segDir:    segDir,
		store:     store,
		runner:    runner,
		uploadSem: make(chan struct{}, uploadConcurrency),
	}

	if data, err := store.Download(ctx, p.playlistKey()); err == nil {
		if parsed, parseErr := ParsePlaylist(string(data)); parseErr == nil {
			p.playlist = parsed
			slog.Info("resumed existing playlist", "task_id", taskID, "media_sequence", parsed.MediaSequence)
		}
	}
	if p.playlist == nil {
		p.playlist = NewPlaylist()
	}

	return p
}

func (p *Publisher) playlistKey() string {
	return fmt.Sprintf("hls/%s/index.m3u8", p.taskID)
}

// AddSegment invokes the segmenter on one produced MP4, appends the
// resulting parts to the playlist with a discontinuity marker, and enqueues
// the new .ts files (and the refreshed playlist) for upload.
func (p *Publisher) AddSegment(ctx context.Context, mp4Path string, partIndex int) error {
	p.allMP4s = append(p.allMP4s, mp4Path)

	outPrefix := filepath.Join(p.segDir, fmt.Sprintf("segment_%04d_", partIndex))
	_, err := p.runner.Run(ctx, "ffmpeg", "-y", "-i", mp4Path,
		"-c", "copy", "-f", "segment", "-segment_time", strconv.Itoa(targetDurationSec),
		"-segment_format", "mpegts", outPrefix+"%03d.ts")
	if err != nil {
		return fmt.Errorf("%w: %v", perr.SegmenterFailed, err)
	}

	parts, err := p.collectParts(ctx, outPrefix)
	if err != nil {
		return fmt.Errorf("%w: %v", perr.SegmenterFailed, err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: segmenter produced no parts for %s", perr.SegmenterFailed, mp4Path)
	}

	p.playlist.AddSegments(parts)
	p.playlist.MediaSequence += len(parts)

	for _, part := range parts {
		p.enqueueUpload(ctx, part.Path, fmt.Sprintf("hls/%s/%s", p.taskID, part.Filename))
	}
	p.enqueuePlaylistUpload(ctx)

	return nil
}

// collectParts globs the segmenter's output and probes each part's duration.
func (p *Publisher) collectParts(ctx context.Context, prefix string) ([]SegmentFile, error) {
	matches, err := filepath.Glob(prefix + "*.ts")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	parts := make([]SegmentFile, 0, len(matches))
	for _, m := range matches {
		dur := p.probeDuration(ctx, m)
		parts = append(parts, SegmentFile{
			Filename:    filepath.Base(m),
			Path:        m,
			DurationSec: dur,
		})
	}
	return parts, nil
}

func (p *Publisher) probeDuration(ctx context.Context, path string) float64 {
	out, err := p.runner.Run(ctx, "ffprobe", "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return float64(targetDurationSec)
	}
	d, parseErr := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if parseErr != nil || d <= 0 {
		return float64(targetDurationSec)
	}
	return d
}

// enqueueUpload tries to hand the upload to the bounded worker pool; if the
// pool is saturated it uploads synchronously instead of blocking the caller
// indefinitely, per the at-most-3-concurrent bound with a forward-progress
// guarantee.
func (p *Publisher) enqueueUpload(ctx context.Context, localPath, key string) {
	select {
	case p.uploadSem <- struct{}{}:
		p.uploadWG.Add(1)
		go func() {
			defer p.uploadWG.Done()
			defer func() { <-p.uploadSem }()
			p.doUpload(ctx, localPath, key)
		}()
	default:
		p.doUpload(ctx, localPath, key)
	}
}

func (p *Publisher) enqueuePlaylistUpload(ctx context.Context) {
	playlistPath := filepath.Join(p.segDir, "index.m3u8")
	text := p.playlist.Render()
	if err := os.WriteFile(playlistPath, []byte(text), 0o644); err != nil {
		slog.Error("write playlist failed", "task_id", p.taskID, "error", err)
		return
	}
	p.enqueuePlaylistBytesUpload(ctx, []byte(text))
}

func (p *Publisher) enqueuePlaylistBytesUpload(ctx context.Context, data []byte) {
	select {
	case p.uploadSem <- struct{}{}:
		p.uploadWG.Add(1)
		go func() {
			defer p.uploadWG.Done()
			defer func() { <-p.uploadSem }()
			p.doUploadBytes(ctx, p.playlistKey(), data, "application/vnd.apple.mpegurl")
		}()
	default:
		p.doUploadBytes(ctx, p.playlistKey(), data, "application/vnd.apple.mpegurl")
	}
}

func (p *Publisher) doUploadBytes(ctx context.Context, key string, data []byte, contentType string) {
	err := p.store.Upload(ctx, key, data, contentType)
	if err != nil {
		metrics.UploadRetries.Inc()
		err = p.store.Upload(ctx, key, data, contentType)
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", perr.UploadFailed, key, err)
		slog.Warn("upload failed", "task_id", p.taskID, "key", key, "error", err)
		p.uploadMu.Lock()
		p.uploadErrs = append(p.uploadErrs, wrapped)
		p.uploadMu.Unlock()
	}
}

func (p *Publisher) doUpload(ctx context.Context, localPath, key string) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		slog.Warn("read segment for upload failed", "task_id", p.taskID, "path", localPath, "error", err)
		return
	}
	contentType := "video/mp2t"
	uploadErr := p.store.Upload(ctx, key, data, contentType)
	if uploadErr != nil {
		metrics.UploadRetries.Inc()
		uploadErr = p.store.Upload(ctx, key, data, contentType)
	}
	if uploadErr != nil {
		wrapped := fmt.Errorf("%w: %s: %v", perr.UploadFailed, key, uploadErr)
		slog.Warn("segment upload failed", "task_id", p.taskID, "key", key, "error", uploadErr)
		p.uploadMu.Lock()
		p.uploadErrs = append(p.uploadErrs, wrapped)
		p.uploadMu.Unlock()
		return
	}
	metrics.SegmentsPublished.Inc()
}

// FinalizeMerge waits up to 60s for in-flight uploads to drain, marks the
// playlist ended, uploads the final playlist, and concatenates every
// produced MP4 into one final file via ffmpeg concat.
func (p *Publisher) FinalizeMerge(ctx context.Context, finalOutPath string) error {
	drained := make(chan struct{})
	go func() {
		p.uploadWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(uploadDrainTimeout):
		slog.Warn("upload drain timed out, finalizing anyway", "task_id", p.taskID)
	}

	p.playlist.EndList = true
	p.enqueuePlaylistUpload(ctx)

	finalDrained := make(chan struct{})
	go func() {
		p.uploadWG.Wait()
		close(finalDrained)
	}()
	select {
	case <-finalDrained:
	case <-time.After(5 * time.Second):
	}

	listPath := filepath.Join(p.segDir, "concat.txt")
	var b strings.Builder
	for _, mp4 := range p.allMP4s {
		fmt.Fprintf(&b, "file '%s'\n", mp4)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	_, err := p.runner.Run(ctx, "ffmpeg", "-y", "-f", "concat", "-safe", "0",
		"-i", listPath, "-c", "copy", finalOutPath)
	if err != nil {
		return fmt.Errorf("%w: concat: %v", perr.MuxFailed, err)
	}

	return nil
}
