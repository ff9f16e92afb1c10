// Package mixer implements the Media Mixer (C6): per-batch timestamping,
// speed/silence materialization, cross-fade concatenation, background mix,
// and video cut + mux into one MP4 segment.
package mixer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hubenschmidt/dubstream-gateway/internal/audio"
	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/metrics"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
	"github.com/hubenschmidt/dubstream-gateway/internal/procx"
	"github.com/hubenschmidt/dubstream-gateway/internal/subtitle"
)

// Config mirrors the mixer-relevant tunables of the config table.
type Config struct {
	SampleRate          int
	OverlapSamples      int
	SilenceFadeMs       int
	NormalizationThresh float64
	VocalsVolume        float64
	BackgroundVolume    float64
	CleanupInterval     int
	BurnSubtitles       bool
	SubtitleLang        string
}

// Result is one produced MP4 segment plus the clock value after it.
type Result struct {
	MP4Path          string
	BatchCounter     int
	NewAudioTimeMs   int64
	Dropped          bool
}

// Mixer carries the per-task rolling state across batches: audio_buffer and
// current_audio_time_ms. Both fields are mutated only by the single worker
// (W4 Compose) that owns this Mixer instance; no locking is needed.
type Mixer struct {
	cfg    Config
	runner *procx.Runner

	audioBuffer       []float32
	currentAudioTimeMs int64
	maxBufferSamples  int
	batchesSinceClean int

	instrumentalPath string
	videoPath        string
	videoDurationMs  int64
	scratchDir       string
}

func New(cfg Config, runner *procx.Runner, maxBufferDuration int64, scratchDir string) *Mixer {
	return &Mixer{
		cfg:              cfg,
		runner:           runner,
		maxBufferSamples: audio.MsToSamples(maxBufferDuration, cfg.SampleRate),
		scratchDir:       scratchDir,
	}
}

// SetVideo supplies the silent video path once the video future resolves;
// the mixer blocks on this only for its first batch.
func (m *Mixer) SetVideo(videoPath string, videoDurationMs int64) {
	m.videoPath = videoPath
	m.videoDurationMs = videoDurationMs
}

// SetInstrumental supplies the background track path, if separation produced
// one; absent, the mixer emits vocals only.
func (m *Mixer) SetInstrumental(path string) {
	m.instrumentalPath = path
}

// Process runs steps 1-6 of the per-batch procedure for one aligned batch.
func (m *Mixer) Process(ctx context.Context, batch domain.Batch) (Result, error) {
	m.timestamp(batch.Sentences)

	materialized, err := m.materializeSpeedAndSilence(ctx, batch.Sentences)
	if err != nil {
		slog.Warn("batch dropped: speed/silence materialization failed", "batch", batch.Counter, "error", err)
		metrics.BatchesProcessed.WithLabelValues("dropped").Inc()
		return Result{Dropped: true, BatchCounter: batch.Counter}, nil
	}

	mixedVocals := m.concatenateWithCrossFade(materialized)

	startMs := int64(0)
	if !batch.Sentences[0].IsFirst {
		startMs = batch.Sentences[0].Timestamp.AdjustedStartMs
	}
	durationMs := int64(audio.SamplesToMs(len(mixedVocals), m.cfg.SampleRate))

	finalAudio, err := m.mixBackground(mixedVocals, startMs, durationMs)
	if err != nil {
		slog.Warn("batch dropped: background mix failed", "batch", batch.Counter, "error", err)
		metrics.BatchesProcessed.WithLabelValues("dropped").Inc()
		return Result{Dropped: true, BatchCounter: batch.Counter}, nil
	}
	audio.Normalize(finalAudio, m.cfg.NormalizationThresh)

	mp4Path, err := m.videoCutAndMux(ctx, batch, finalAudio, startMs, durationMs)
	if err != nil {
		slog.Warn("batch dropped: video cut/mux failed", "batch", batch.Counter, "error", err)
		metrics.BatchesProcessed.WithLabelValues("dropped").Inc()
		return Result{Dropped: true, BatchCounter: batch.Counter}, nil
	}

	m.updateBuffer(finalAudio)
	m.batchesSinceClean++
	if m.batchesSinceClean >= m.cfg.CleanupInterval {
		runtime.GC()
		m.batchesSinceClean = 0
	}
	metrics.BatchesProcessed.WithLabelValues("published").Inc()

	return Result{
		MP4Path:        mp4Path,
		BatchCounter:   batch.Counter,
		NewAudioTimeMs: m.currentAudioTimeMs,
	}, nil
}

// timestamp implements the TimeStamper step: sets adjusted_start_ms from the
// running clock and advances it by each sentence's rendered duration.
func (m *Mixer) timestamp(sentences []domain.Sentence) {
	for i := range sentences {
		s := &sentences[i]
		if err := domain.RequireStage(s, domain.StageStamp); err != nil {
			slog.Warn("stamp stage entry guard failed", "sequence", s.Sequence, "error", err)
		}
		durMs := int64(0)
		if s.GeneratedAudio != nil {
			durMs = int64(audio.SamplesToMs(len(s.GeneratedAudio), m.cfg.SampleRate))
		}
		s.Timestamp = &domain.TimestampResult{
			AdjustedStartMs:    m.currentAudioTimeMs,
			AdjustedDurationMs: durMs,
		}
		m.currentAudioTimeMs += durMs
	}
}

// materializeSpeedAndSilence applies fade-in/lead silence for IsFirst,
// time-stretch at Align.Speed via the atempo pipe, trailing silence with a
// fade-out seam, and tail padding for IsLast.
func (m *Mixer) materializeSpeedAndSilence(ctx context.Context, sentences []domain.Sentence) ([][]float32, error) {
	out := make([][]float32, len(sentences))

	for i, s := range sentences {
		pcm := append([]float32{}, s.GeneratedAudio...)
		if len(pcm) == 0 {
			out[i] = nil
			continue
		}

		if s.IsFirst && s.StartMs > 0 {
			fadeN := audio.MsToSamples(int64(m.cfg.SilenceFadeMs), m.cfg.SampleRate)
			audio.EqualPowerFadeIn(pcm, fadeN)
			lead := audio.Silence(audio.MsToSamples(s.StartMs, m.cfg.SampleRate))
			pcm = append(lead, pcm...)
		}

		speed := 1.0
		if s.Align != nil {
			speed = s.Align.Speed
		}
		if speed < 0.5 || speed > 100 {
			return nil, fmt.Errorf("%w: speed %.3f for sequence %d", perr.StretchOutOfRange, speed, s.Sequence)
		}
		if speed != 1.0 {
			stretched, err := m.atempo(ctx, pcm, speed)
			if err != nil {
				return nil, err
			}
			pcm = stretched
		}

		if s.Align != nil && s.Align.EndingSilenceMs > 0 {
			fadeN := audio.MsToSamples(int64(m.cfg.SilenceFadeMs), m.cfg.SampleRate)
			audio.EqualPowerFadeOut(pcm, fadeN)
			trail := audio.Silence(audio.MsToSamples(int64(s.Align.EndingSilenceMs), m.cfg.SampleRate))
			pcm = append(pcm, trail...)
		}

		if s.IsLast && m.videoDurationMs > 0 {
			currentEndMs := s.Timestamp.AdjustedStartMs + int64(audio.SamplesToMs(len(pcm), m.cfg.SampleRate))
			if pad := m.videoDurationMs - currentEndMs; pad > 0 {
				pcm = append(pcm, audio.Silence(audio.MsToSamples(pad, m.cfg.SampleRate))...)
			}
		}

		out[i] = pcm
	}

	return out, nil
}

// atempo pipes raw f32le PCM through ffmpeg's atempo filter to change
// duration without changing pitch, per the documented CLI.
func (m *Mixer) atempo(ctx context.Context, pcm []float32, speed float64) ([]float32, error) {
	input := float32PCMToBytes(pcm)
	out, err := m.runner.RunPiped(ctx, input, "ffmpeg",
		"-y", "-f", "f32le", "-ar", fmt.Sprintf("%d", m.cfg.SampleRate), "-ac", "1", "-i", "pipe:0",
		"-filter:a", fmt.Sprintf("atempo=%.4f", speed),
		"-f", "f32le", "pipe:1")
	if err != nil {
		return nil, err
	}
	return bytesToFloat32PCM(out), nil
}

// concatenateWithCrossFade joins each sentence's materialized audio with an
// equal-power cross-fade against the running buffer's tail.
func (m *Mixer) concatenateWithCrossFade(materialized [][]float32) []float32 {
	var out []float32
	if len(m.audioBuffer) > 0 {
		out = append([]float32{}, m.audioBuffer...)
	}
	for _, pcm := range materialized {
		if pcm == nil {
			continue
		}
		if len(out) == 0 {
			out = pcm
			continue
		}
		out = audio.CrossFade(out, pcm, m.cfg.OverlapSamples)
	}
	if len(m.audioBuffer) > 0 {
		// Drop the buffer's own length back off the front: it was only
		// present to seed the cross-fade, not to be re-emitted.
		bufLen := len(m.audioBuffer)
		if bufLen < len(out) {
			out = out[bufLen:]
		}
	}
	return out
}

// mixBackground reads the [start, start+duration] window of the
// instrumental track, scales both tracks, and sums them. If no instrumental
// is available, vocals pass through unchanged.
func (m *Mixer) mixBackground(vocals []float32, startMs, durationMs int64) ([]float32, error) {
	if m.instrumentalPath == "" {
		return vocals, nil
	}

	data, err := os.ReadFile(m.instrumentalPath)
	if err != nil {
		return nil, fmt.Errorf("read instrumental: %w", err)
	}
	full, sr, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode instrumental: %w", err)
	}
	full = audio.Resample(full, sr, m.cfg.SampleRate)

	startSample := audio.MsToSamples(startMs, m.cfg.SampleRate)
	endSample := startSample + len(vocals)
	if startSample > len(full) {
		startSample = len(full)
	}
	if endSample > len(full) {
		endSample = len(full)
	}
	window := full[startSample:endSample]

	out := make([]float32, len(vocals))
	for i := range out {
		v := vocals[i] * float32(m.cfg.VocalsVolume)
		var bg float32
		if i < len(window) {
			bg = window[i] * float32(m.cfg.BackgroundVolume)
		}
		out[i] = v + bg
	}
	return out, nil
}

// videoCutAndMux extracts the batch's video window, writes the mixed audio,
// and muxes them (with optional ASS subtitle burn-in) into one MP4 segment.
func (m *Mixer) videoCutAndMux(ctx context.Context, batch domain.Batch, finalAudio []float32, startMs, durationMs int64) (string, error) {
	if m.videoPath == "" {
		return "", fmt.Errorf("%w: video not ready", perr.VideoCutFailed)
	}

	videoWindow := filepath.Join(m.scratchDir, fmt.Sprintf("video_%04d.mp4", batch.Counter))
	startSec := float64(startMs) / 1000
	durSec := float64(durationMs) / 1000
	_, err := m.runner.Run(ctx, "ffmpeg", "-y",
		"-ss", fmt.Sprintf("%.3f", startSec), "-i", m.videoPath,
		"-t", fmt.Sprintf("%.3f", durSec),
		"-c:v", "libx264", "-preset", "superfast", "-an", videoWindow)
	if err != nil {
		return "", fmt.Errorf("%w: %v", perr.VideoCutFailed, err)
	}

	audioPath := filepath.Join(m.scratchDir, fmt.Sprintf("audio_%04d.wav", batch.Counter))
	wavBytes, err := audio.EncodeWAV(finalAudio, m.cfg.SampleRate)
	if err != nil {
		return "", fmt.Errorf("%w: encode segment audio: %v", perr.MuxFailed, err)
	}
	if err := os.WriteFile(audioPath, wavBytes, 0o644); err != nil {
		return "", fmt.Errorf("%w: write segment audio: %v", perr.MuxFailed, err)
	}

	outPath := filepath.Join(m.scratchDir, "segments", fmt.Sprintf("segment_%d.mp4", batch.Counter))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}

	if m.cfg.BurnSubtitles {
		assPath := filepath.Join(m.scratchDir, fmt.Sprintf("subs_%04d.ass", batch.Counter))
		width, height := probeResolution(ctx, m.runner, videoWindow)
		cues := subtitle.BuildCues(batch.Sentences, startMs, m.cfg.SubtitleLang)
		if err := os.WriteFile(assPath, []byte(subtitle.Render(cues, width, height)), 0o644); err != nil {
			return "", fmt.Errorf("%w: write ass: %v", perr.MuxFailed, err)
		}
		_, err = m.runner.Run(ctx, "ffmpeg", "-y", "-i", videoWindow, "-i", audioPath,
			"-filter_complex", fmt.Sprintf("[0:v]subtitles='%s'[v]", assPath),
			"-map", "[v]", "-map", "1:a",
			"-c:v", "libx264", "-preset", "superfast", "-crf", "23", "-c:a", "aac", outPath)
	} else {
		_, err = m.runner.Run(ctx, "ffmpeg", "-y", "-i", videoWindow, "-i", audioPath,
			"-c:v", "copy", "-c:a", "aac", outPath)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", perr.MuxFailed, err)
	}

	return outPath, nil
}

// updateBuffer retains the tail of the mixed audio, capped at
// maxBufferSamples, for the next batch's cross-fade seed.
func (m *Mixer) updateBuffer(finalAudio []float32) {
	if len(finalAudio) > m.maxBufferSamples {
		m.audioBuffer = append([]float32{}, finalAudio[len(finalAudio)-m.maxBufferSamples:]...)
	} else {
		m.audioBuffer = append([]float32{}, finalAudio...)
	}
}

func probeResolution(ctx context.Context, runner *procx.Runner, path string) (int, int) {
	out, err := runner.Run(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height", "-of", "csv=s=x:p=0", path)
	if err != nil {
		return 1280, 720
	}
	var w, h int
	_, scanErr := fmt.Sscanf(string(out), "%dx%d", &w, &h)
	if scanErr != nil || w == 0 || h == 0 {
		return 1280, 720
	}
	return w, h
}
