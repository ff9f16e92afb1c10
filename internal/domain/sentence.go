// Package domain holds the data model carried end-to-end through the
// pipeline: Sentence, AudioClip, Batch, and Task.
package domain

import "fmt"

// AlignResult is attached by the Duration Aligner (C5). Speed must satisfy
// 0.5 <= Speed <= 100 always, and Speed <= 1.2 as a soft cap enforced via
// simplification retries.
type AlignResult struct {
	Speed           float64
	EndingSilenceMs int
	SpeechDurationMs float64
}

// TimestampResult is attached by the Mixer's TimeStamper step (part of C6).
type TimestampResult struct {
	AdjustedStartMs    int64
	AdjustedDurationMs int64
}

// Sentence is the atomic unit carried through the pipeline. It is a single
// struct with option-typed derived fields rather than a chain of per-stage
// types: the align and stamp entry points call RequireStage to check that
// the fields they depend on are already populated. The guard does not check
// that the fields a stage writes are still nil.
type Sentence struct {
	TaskID   string
	Sequence int // 1-based, dense, strictly increasing within a task

	OriginalText   string
	TranslatedText string
	Speaker        string
	StartMs        int64
	EndMs          int64
	IsFirst        bool
	IsLast         bool

	// Fetcher
	TargetDurationMs int64

	// Slicer
	PromptAudioPath string

	// TTS Producer
	GeneratedAudio []float32 // mono float32 PCM at Config.TargetSampleRate
	DurationMs     float64

	// Duration Aligner
	Align *AlignResult

	// Mixer TimeStamper
	Timestamp *TimestampResult
}

// Stage names used by requireStage, in pipeline order.
const (
	StageFetch  = "fetch"
	StageSlice  = "slice"
	StageTTS    = "tts"
	StageAlign  = "align"
	StageStamp  = "stamp"
)

// requireStage checks the prerequisites of the named stage: the fields
// produced by earlier stages are present. It does not check whether the
// fields this stage writes have already been set.
func requireStage(s *Sentence, stage string) error {
	switch stage {
	case StageSlice:
		if s.TargetDurationMs == 0 && s.EndMs != s.StartMs {
			return fmt.Errorf("sentence %d: slice stage requires target_duration_ms set", s.Sequence)
		}
	case StageTTS:
		if s.PromptAudioPath == "" {
			// Allowed: Slicer may have left this empty when slicing failed;
			// the TTS Producer tolerates it by skipping synthesis.
			return nil
		}
	case StageAlign:
		if s.GeneratedAudio == nil && s.DurationMs != 0 {
			return fmt.Errorf("sentence %d: align stage requires tts output", s.Sequence)
		}
	case StageStamp:
		if s.Align == nil {
			return fmt.Errorf("sentence %d: stamp stage requires align result", s.Sequence)
		}
	}
	return nil
}

// RequireStage is the exported entry-point guard; the align and stamp stages
// call it on every sentence they process.
func RequireStage(s *Sentence, stage string) error {
	return requireStage(s, stage)
}
