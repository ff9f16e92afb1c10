// Package fetch implements the Data Fetcher (C2): parallel retrieval of
// segments, media paths, source audio/video, vocal separation, and
// sentence-level audio slicing.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hubenschmidt/dubstream-gateway/internal/audio"
	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
	"github.com/hubenschmidt/dubstream-gateway/internal/procx"
)

// StoreGateway is the subset of *store.Gateway the Fetcher needs; modeled
// as an interface so tests can substitute a fake.
type StoreGateway interface {
	GetSegments(ctx context.Context, taskID string) ([]domain.Sentence, error)
	GetMediaPaths(ctx context.Context, taskID string) (domain.MediaPaths, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// Separator calls the external vocal-separation model sidecar.
type Separator interface {
	Separate(ctx context.Context, audioPCM []float32, sampleRate int) (vocals, instrumental []float32, err error)
}

// VideoResult is delivered on the video future once the silent-video
// download (and extraction) completes.
type VideoResult struct {
	Path string
	Err  error
}

// FetchResult is the Fetcher's output, consumed by the Orchestrator.
type FetchResult struct {
	Sentences        []domain.Sentence
	VocalsPath       string
	InstrumentalPath string // empty if no separation happened
	VideoFuture      <-chan VideoResult
	ScratchDir       string
}

// Fetcher implements component C2.
type Fetcher struct {
	store      StoreGateway
	separator  Separator
	slicer     *audio.Slicer
	runner     *procx.Runner
	sampleRate int
	enableSep  bool
}

func New(store StoreGateway, separator Separator, slicer *audio.Slicer, runner *procx.Runner, sampleRate int, enableSeparation bool) *Fetcher {
	return &Fetcher{store: store, separator: separator, slicer: slicer, runner: runner, sampleRate: sampleRate, enableSep: enableSeparation}
}

// Fetch runs the parallel KV phase, then the parallel media phase, and
// returns as soon as the audio chain completes; the video download
// continues in the background on VideoFuture.
func (f *Fetcher) Fetch(ctx context.Context, taskID, scratchDir string) (*FetchResult, error) {
	type segResult struct {
		sentences []domain.Sentence
		err       error
	}
	type pathResult struct {
		paths domain.MediaPaths
		err   error
	}

	segCh := make(chan segResult, 1)
	pathCh := make(chan pathResult, 1)

	go func() {
		s, err := f.store.GetSegments(ctx, taskID)
		segCh <- segResult{s, err}
	}()
	go func() {
		p, err := f.store.GetMediaPaths(ctx, taskID)
		pathCh <- pathResult{p, err}
	}()

	sr := <-segCh
	pr := <-pathCh
	if sr.err != nil {
		return nil, sr.err
	}
	if pr.err != nil {
		return nil, pr.err
	}
	if len(sr.sentences) == 0 {
		return nil, fmt.Errorf("%w: task %s", perr.EmptyTranscription, taskID)
	}

	videoFuture := make(chan VideoResult, 1)
	go f.runVideoChain(ctx, pr.paths.VideoPath, scratchDir, videoFuture)

	vocalsPath, instrumentalPath, err := f.runAudioChain(ctx, pr.paths.AudioPath, scratchDir, sr.sentences)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		Sentences:        sr.sentences,
		VocalsPath:       vocalsPath,
		InstrumentalPath: instrumentalPath,
		VideoFuture:      videoFuture,
		ScratchDir:       scratchDir,
	}, nil
}

// runAudioChain downloads the source audio, optionally separates it into
// vocals/instrumental (falling back to the original on failure), and slices
// the result into per-speaker prompt clips.
func (f *Fetcher) runAudioChain(ctx context.Context, audioKey, scratchDir string, sentences []domain.Sentence) (string, string, error) {
	raw, err := f.store.Download(ctx, audioKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: download audio: %v", perr.StoreUnavailable, err)
	}

	inputPath := filepath.Join(scratchDir, "input_"+filepath.Base(audioKey))
	if err := os.MkdirAll(filepath.Dir(inputPath), 0o755); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(inputPath, raw, 0o644); err != nil {
		return "", "", err
	}

	originalPath := filepath.Join(scratchDir, "original_audio.wav")
	_, err = f.runner.Run(ctx, "ffmpeg", "-y", "-i", inputPath, "-vn", "-acodec", "pcm_f32le", "-ac", "1", originalPath)
	if err != nil {
		return "", "", fmt.Errorf("%w: extract audio: %v", perr.StoreUnavailable, err)
	}

	extracted, err := os.ReadFile(originalPath)
	if err != nil {
		return "", "", err
	}
	samples, sr, err := audio.DecodeWAV(extracted)
	if err != nil {
		return "", "", fmt.Errorf("%w: decode audio: %v", perr.StoreUnavailable, err)
	}
	samples = audio.Resample(samples, sr, f.sampleRate)

	vocalsPath := originalPath
	instrumentalPath := ""

	if f.enableSep {
		vocals, instrumental, sepErr := f.separator.Separate(ctx, samples, f.sampleRate)
		if sepErr != nil {
			slog.Warn("vocal separation failed, falling back to original audio", "task_id", sentences[0].TaskID, "error", sepErr)
		} else {
			vp := filepath.Join(scratchDir, "vocals.wav")
			ip := filepath.Join(scratchDir, "instrumental.wav")
			if err := writeWAV(vp, vocals, f.sampleRate); err == nil {
				if err := writeWAV(ip, instrumental, f.sampleRate); err == nil {
					vocalsPath, instrumentalPath = vp, ip
					samples = vocals
				}
			}
		}
	}

	if _, err := f.slicer.Slice(samples, sentences, filepath.Join(scratchDir, "clips")); err != nil {
		slog.Warn("audio slicing failed, sentences proceed without prompt audio", "error", err)
	}

	return vocalsPath, instrumentalPath, nil
}

// runVideoChain downloads the source video key, then extracts an
// audio-less copy with ffmpeg (-an -c:v libx264 -preset ultrafast -crf 18)
// so the Mixer only ever deals with silent video windows.
func (f *Fetcher) runVideoChain(ctx context.Context, videoKey, scratchDir string, out chan<- VideoResult) {
	raw, err := f.store.Download(ctx, videoKey)
	if err != nil {
		out <- VideoResult{Err: fmt.Errorf("%w: download video: %v", perr.StoreUnavailable, err)}
		return
	}

	base := filepath.Base(videoKey)
	rawPath := filepath.Join(scratchDir, base)
	if err := os.MkdirAll(filepath.Dir(rawPath), 0o755); err != nil {
		out <- VideoResult{Err: err}
		return
	}
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		out <- VideoResult{Err: err}
		return
	}

	silentPath := filepath.Join(scratchDir, "silent_"+base)
	_, err = f.runner.Run(ctx, "ffmpeg", "-y", "-i", rawPath, "-an", "-c:v", "libx264", "-preset", "ultrafast", "-crf", "18", silentPath)
	if err != nil {
		out <- VideoResult{Err: err}
		return
	}

	out <- VideoResult{Path: silentPath}
}

func writeWAV(path string, samples []float32, sr int) error {
	data, err := audio.EncodeWAV(samples, sr)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
