package align

import (
	"context"

	"github.com/hubenschmidt/dubstream-gateway/internal/audio"
	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
)

// synthesizer is the minimal shape of the external speech_synth model the
// Resynthesizer needs; it mirrors tts.Synthesizer without importing the tts
// package, keeping align's dependency graph one-directional.
type synthesizer interface {
	Synthesize(ctx context.Context, promptAudioPath, text string) (pcm []int16, sampleRate int, err error)
}

// DefaultResynthesizer re-runs the external synthesizer for a single
// sentence after its translated text has been simplified.
type DefaultResynthesizer struct {
	synth synthesizer
}

func NewResynthesizer(synth synthesizer) *DefaultResynthesizer {
	return &DefaultResynthesizer{synth: synth}
}

func (r *DefaultResynthesizer) Resynthesize(ctx context.Context, sent domain.Sentence) domain.Sentence {
	if sent.PromptAudioPath == "" {
		return sent
	}

	pcm, sr, err := r.synth.Synthesize(ctx, sent.PromptAudioPath, sent.TranslatedText)
	if err != nil {
		return sent
	}

	samples := make([]float32, len(pcm))
	for i, v := range pcm {
		samples[i] = float32(v) / 32768.0
	}
	sent.GeneratedAudio = samples
	sent.DurationMs = audio.SamplesToMs(len(samples), sr)
	return sent
}
