// Package orchestrator wires the four streaming workers (TTS producer,
// aligner, video prep, compose) around the two bounded queues and drives one
// task end to end. Timestamps are assigned in the compose worker, by
// mixer.Process.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/fetch"
	"github.com/hubenschmidt/dubstream-gateway/internal/hls"
	"github.com/hubenschmidt/dubstream-gateway/internal/metrics"
	"github.com/hubenschmidt/dubstream-gateway/internal/mixer"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
	"github.com/hubenschmidt/dubstream-gateway/internal/procx"
)

// StoreGateway is the subset of *store.Gateway the orchestrator needs beyond
// what it hands down to the Fetcher and Publisher.
type StoreGateway interface {
	fetch.StoreGateway
	hls.ObjectStore
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error
}

// Fetcher is the subset of *fetch.Fetcher the orchestrator drives; narrowed
// to an interface so tests can substitute a fake C2.
type Fetcher interface {
	Fetch(ctx context.Context, taskID, scratchDir string) (*fetch.FetchResult, error)
}

// Producer is the subset of *tts.Producer the orchestrator drives.
type Producer interface {
	Stream(ctx context.Context, sentences []domain.Sentence, scratchDir string) <-chan domain.Batch
}

// Aligner is the subset of *align.Aligner the orchestrator drives.
type Aligner interface {
	Align(ctx context.Context, batch domain.Batch) domain.Batch
}

// Config is the subset of config.Config the orchestrator and its workers
// need, passed down by value so no package reads the environment directly.
type Config struct {
	ScratchRoot      string
	SampleRate       int
	OverlapSamples   int
	SilenceFadeMs    int
	NormalizationThresh float64
	VocalsVolume     float64
	BackgroundVolume float64
	TTSBatchSize     int
	AlignedQueueSize int
	SaveTTSAudio     bool
	MaxBufferDuration time.Duration
	CleanupInterval  int
	BurnSubtitles    bool
	SubtitleLang     string
	FFmpegTimeout    time.Duration
	EnableSeparation bool
	KeepScratch      bool
	UploadConcurrency int
}

// Orchestrator drives component O: it owns the TaskManager and assembles
// the Fetcher, Producer, Aligner, Mixer, and Publisher for each run.
type Orchestrator struct {
	store    StoreGateway
	fetcher  Fetcher
	producer Producer
	aligner  Aligner
	cfg      Config
	runner   *procx.Runner
	tasks    *TaskManager
	events   EventSink
}

func New(store StoreGateway, fetcher Fetcher, producer Producer, aligner Aligner, runner *procx.Runner, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		producer: producer,
		aligner:  aligner,
		cfg:      cfg,
		runner:   runner,
		tasks:    NewTaskManager(),
	}
}

// SetEventSink wires an optional live-progress sink; must be called before
// the first Run if the /api/task/{id}/events endpoint is in use.
func (o *Orchestrator) SetEventSink(sink EventSink) {
	o.events = sink
}

// Run executes one task's pipeline to completion (or failure), updating its
// status in the store. It refuses a second concurrent run of the same
// task_id.
func (o *Orchestrator) Run(ctx context.Context, taskID string) error {
	if !o.tasks.Start(taskID) {
		return fmt.Errorf("task %s is already running", taskID)
	}
	defer o.tasks.Finish(taskID)

	metrics.TasksActive.Inc()
	defer metrics.TasksActive.Dec()

	scratchDir := filepath.Join(o.cfg.ScratchRoot, taskID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	if !o.cfg.KeepScratch {
		defer os.RemoveAll(scratchDir)
	}

	if err := o.store.UpdateTaskStatus(ctx, taskID, domain.TaskProcessing, ""); err != nil {
		slog.Warn("update task status to processing failed", "task_id", taskID, "error", err)
	}

	err := o.run(ctx, taskID, scratchDir)
	if err != nil {
		metrics.TasksTotal.WithLabelValues("error").Inc()
		metrics.Errors.WithLabelValues("orchestrator", "run").Inc()
		if statusErr := o.store.UpdateTaskStatus(ctx, taskID, domain.TaskError, errorMessage(err)); statusErr != nil {
			slog.Error("update task status to error failed", "task_id", taskID, "error", statusErr)
		}
		return err
	}

	metrics.TasksTotal.WithLabelValues("completed").Inc()
	if statusErr := o.store.UpdateTaskStatus(ctx, taskID, domain.TaskCompleted, ""); statusErr != nil {
		slog.Error("update task status to completed failed", "task_id", taskID, "error", statusErr)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, taskID, scratchDir string) error {
	fetchStart := time.Now()
	fetched, err := o.fetcher.Fetch(ctx, taskID, scratchDir)
	metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("fetch", "failed").Inc()
		return fmt.Errorf("fetch: %w", err)
	}

	mx := mixer.New(mixer.Config{
		SampleRate:          o.cfg.SampleRate,
		OverlapSamples:      o.cfg.OverlapSamples,
		SilenceFadeMs:       o.cfg.SilenceFadeMs,
		NormalizationThresh: o.cfg.NormalizationThresh,
		VocalsVolume:        o.cfg.VocalsVolume,
		BackgroundVolume:    o.cfg.BackgroundVolume,
		CleanupInterval:     o.cfg.CleanupInterval,
		BurnSubtitles:       o.cfg.BurnSubtitles,
		SubtitleLang:        o.cfg.SubtitleLang,
	}, o.runner, int64(o.cfg.MaxBufferDuration/time.Millisecond), scratchDir)
	mx.SetInstrumental(fetched.InstrumentalPath)

	publisher := hls.New(ctx, taskID, filepath.Join(scratchDir, "hls"), o.store, o.runner, o.cfg.UploadConcurrency)

	videoReady := make(chan struct{})
	go o.awaitVideo(ctx, fetched.VideoFuture, mx, videoReady)

	// W1: TTS producer streams batches onto Q1.
	q1 := o.producer.Stream(ctx, fetched.Sentences, scratchDir)

	// W2: align, forwarding onto Q2. Stamping happens in W4, inside mx.Process.
	q2 := o.alignStage(ctx, q1)

	// W4: compose each aligned batch into one MP4 segment and publish it.
	var mp4Paths []string
	partIndex := 0
	videoAwaited := false

	for batch := range q2 {
		if !videoAwaited {
			select {
			case <-videoReady:
			case <-ctx.Done():
				return ctx.Err()
			}
			videoAwaited = true
		}

		mixStart := time.Now()
		res, procErr := mx.Process(ctx, batch)
		metrics.StageDuration.WithLabelValues("mix").Observe(time.Since(mixStart).Seconds())
		if procErr != nil {
			metrics.Errors.WithLabelValues("mix", "failed").Inc()
			return fmt.Errorf("mixer: %w", procErr)
		}
		if res.Dropped {
			continue
		}

		hlsStart := time.Now()
		err := publisher.AddSegment(ctx, res.MP4Path, partIndex)
		metrics.StageDuration.WithLabelValues("hls").Observe(time.Since(hlsStart).Seconds())
		if err != nil {
			metrics.Errors.WithLabelValues("hls", "publish").Inc()
			slog.Warn("hls segment publish failed", "task_id", taskID, "batch", res.BatchCounter, "error", err)
			continue
		}
		mp4Paths = append(mp4Paths, res.MP4Path)
		partIndex++

		if o.events != nil {
			o.events.Publish(taskID, TaskEvent{
				Sequence:    partIndex,
				PlaylistURL: fmt.Sprintf("hls/%s/index.m3u8", taskID),
			})
		}
	}

	if len(mp4Paths) == 0 {
		return fmt.Errorf("%w: no segments were produced", perr.MuxFailed)
	}

	finalPath := filepath.Join(scratchDir, fmt.Sprintf("final_%s.mp4", taskID))
	if err := publisher.FinalizeMerge(ctx, finalPath); err != nil {
		return fmt.Errorf("finalize merge: %w", err)
	}

	data, err := os.ReadFile(finalPath)
	if err != nil {
		return fmt.Errorf("read final merge output: %w", err)
	}
	if err := o.store.Upload(ctx, fmt.Sprintf("hls/%s/final.mp4", taskID), data, "video/mp4"); err != nil {
		slog.Warn("final merge upload failed", "task_id", taskID, "error", err)
	}

	return nil
}

// alignStage runs W2: it drains Q1, aligns each batch, and forwards onto
// Q2, whose capacity is cfg.AlignedQueueSize (ALIGNED_QUEUE_SIZE). A slow
// consumer of Q2 back-pressures this goroutine once Q2 fills, which in turn
// back-pressures Q1 (and so the TTS producer) once the aligner itself stalls
// waiting to send.
func (o *Orchestrator) alignStage(ctx context.Context, q1 <-chan domain.Batch) <-chan domain.Batch {
	q2 := make(chan domain.Batch, o.cfg.AlignedQueueSize)
	go func() {
		defer close(q2)
		for batch := range q1 {
			metrics.QueueDepth.WithLabelValues("q1").Set(float64(len(q1)))
			alignStart := time.Now()
			aligned := o.aligner.Align(ctx, batch)
			metrics.StageDuration.WithLabelValues("align").Observe(time.Since(alignStart).Seconds())
			select {
			case q2 <- aligned:
			case <-ctx.Done():
				return
			}
			metrics.QueueDepth.WithLabelValues("q2").Set(float64(len(q2)))
		}
	}()
	return q2
}

// awaitVideo blocks on the Fetcher's video future, probes its duration, and
// hands both to the Mixer before signaling W4 that the first batch may
// proceed.
func (o *Orchestrator) awaitVideo(ctx context.Context, videoFuture <-chan fetch.VideoResult, mx *mixer.Mixer, ready chan<- struct{}) {
	select {
	case v := <-videoFuture:
		if v.Err != nil {
			slog.Error("video preparation failed, every batch will be dropped at the video cut", "error", v.Err)
			close(ready)
			return
		}
		durationMs := probeDurationMs(ctx, o.runner, v.Path)
		mx.SetVideo(v.Path, durationMs)
	case <-ctx.Done():
	}
	close(ready)
}

// errorMessage produces the user-visible error_message stored on the task
// row: a short, fixed Chinese string for an unknown task, the wrapped Go
// error text otherwise.
func errorMessage(err error) string {
	if errors.Is(err, perr.NotFound) {
		return "任务不存在"
	}
	return err.Error()
}

func probeDurationMs(ctx context.Context, runner *procx.Runner, path string) int64 {
	out, err := runner.Run(ctx, "ffprobe", "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return 0
	}
	var seconds float64
	if _, scanErr := fmt.Sscanf(string(out), "%f", &seconds); scanErr != nil {
		return 0
	}
	return int64(seconds * 1000)
}
