// Package perr defines the semantic error kinds that the orchestrator and
// its components reason about, per the error-handling design: recovery is
// keyed off a kind, not a concrete type, so every stage wraps its failures
// around one of these sentinels with fmt.Errorf("%w").
package perr

import "errors"

var (
	// StoreUnavailable is raised by the Store Gateway on transport failure.
	StoreUnavailable = errors.New("store unavailable")
	// NotFound is raised when a task_id is unknown to the KV store.
	NotFound = errors.New("task not found")
	// EmptyTranscription is raised when a task has zero speech segments.
	EmptyTranscription = errors.New("empty transcription")
	// SeparationFailed is raised by the vocal separator sidecar call.
	SeparationFailed = errors.New("vocal separation failed")
	// SlicingFailed is raised by the Audio Slicer.
	SlicingFailed = errors.New("audio slicing failed")
	// SynthesisFailed is raised per-sentence by the TTS Producer.
	SynthesisFailed = errors.New("speech synthesis failed")
	// SimplificationFailed is raised by the Simplifier.
	SimplificationFailed = errors.New("text simplification failed")
	// StretchOutOfRange indicates a logic bug: the Aligner produced a speed
	// outside [0.5, 100]; this must never be recovered from locally.
	StretchOutOfRange = errors.New("stretch factor out of range")
	// VideoCutFailed is raised by the Mixer's video-window extraction.
	VideoCutFailed = errors.New("video cut failed")
	// MuxFailed is raised by the Mixer's final mux step.
	MuxFailed = errors.New("mux failed")
	// SegmenterFailed is raised by the HLS Publisher's segmenter invocation.
	SegmenterFailed = errors.New("hls segmenter failed")
	// UploadFailed is raised by the HLS Publisher's upload workers; it never
	// fails a task on its own.
	UploadFailed = errors.New("upload failed")
	// Timeout is raised by any external-process call that exceeds its
	// wall-clock budget.
	Timeout = errors.New("external process timed out")
)
