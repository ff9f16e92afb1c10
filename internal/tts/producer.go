// Package tts implements the TTS Producer (C4): batched, sentence-by-
// sentence speech synthesis streamed into batches for the Aligner.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/hubenschmidt/dubstream-gateway/internal/audio"
	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
)

// Synthesizer is the external speech_synth(prompt_audio, text) -> pcm model,
// treated as a collaborator per the spec's out-of-scope list.
type Synthesizer interface {
	Synthesize(ctx context.Context, promptAudioPath, text string) (pcm []int16, sampleRate int, err error)
}

// Producer streams sentences through the synthesizer and emits fixed-size
// batches in sequence order.
type Producer struct {
	synth Synthesizer
	mu    sync.Mutex // the model is not reentrant; one call in flight at a time
	batchSize int
	queueSize int
	saveAudio bool
}

func New(synth Synthesizer, batchSize, queueSize int, saveAudio bool) *Producer {
	return &Producer{synth: synth, batchSize: batchSize, queueSize: queueSize, saveAudio: saveAudio}
}

// Stream iterates sentences in order, invoking the synthesizer once per
// sentence, and emits a domain.Batch on out whenever batchSize sentences
// have accumulated (and once more for the remainder at EOF). It closes out
// after the last batch; the caller relies on channel close, not a sentinel,
// to detect end-of-stream within the goroutine that reads it. out is
// buffered to queueSize (Q1, TTS_QUEUE_SIZE) so a slow downstream aligner
// applies back-pressure to the producer once the queue fills.
func (p *Producer) Stream(ctx context.Context, sentences []domain.Sentence, scratchDir string) <-chan domain.Batch {
	out := make(chan domain.Batch, p.queueSize)

	go func() {
		defer close(out)

		counter := 0
		var pending []domain.Sentence

		for _, sent := range sentences {
			synthesized := p.synthesizeOne(ctx, sent, scratchDir)
			pending = append(pending, synthesized)

			if len(pending) >= p.batchSize {
				select {
				case out <- domain.Batch{Counter: counter, Sentences: pending}:
				case <-ctx.Done():
					return
				}
				counter++
				pending = nil
				runtime.GC()
			}
		}

		if len(pending) > 0 {
			select {
			case out <- domain.Batch{Counter: counter, Sentences: pending}:
				runtime.GC()
			case <-ctx.Done():
			}
		}
	}()

	return out
}

// synthesizeOne calls the synthesizer under the single-holder mutex (the
// model is not reentrant), normalizes the int16 output to float32 PCM, and
// tolerates failure by emitting a zero-duration sentence.
func (p *Producer) synthesizeOne(ctx context.Context, sent domain.Sentence, scratchDir string) domain.Sentence {
	if sent.PromptAudioPath == "" {
		slog.Warn("sentence has no prompt audio, skipping synthesis", "task_id", sent.TaskID, "sequence", sent.Sequence)
		return sent
	}

	p.mu.Lock()
	pcm, sr, err := p.synth.Synthesize(ctx, sent.PromptAudioPath, sent.TranslatedText)
	p.mu.Unlock()

	if err != nil {
		slog.Warn("speech synthesis failed, sentence contributes 0ms", "task_id", sent.TaskID, "sequence", sent.Sequence, "error", err)
		sent.GeneratedAudio = nil
		sent.DurationMs = 0
		return sent
	}

	samples := int16PCMToFloat32(pcm)
	sent.GeneratedAudio = samples
	sent.DurationMs = audio.SamplesToMs(len(samples), sr)

	if p.saveAudio {
		p.persist(sent, scratchDir, sr)
	}

	return sent
}

func (p *Producer) persist(sent domain.Sentence, scratchDir string, sampleRate int) {
	data, err := audio.EncodeWAV(sent.GeneratedAudio, sampleRate)
	if err != nil {
		return
	}
	path := filepath.Join(scratchDir, "tts_output", fmt.Sprintf("sentence_%04d_%s.wav", sent.Sequence, sent.Speaker))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

func int16PCMToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}
