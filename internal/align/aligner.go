// Package align implements the Duration Aligner (C5): per-batch
// proportional speed correction with a single adaptive-simplification
// retry for sentences that would otherwise exceed the max speed.
package align

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/metrics"
)

const maxSpeed = 1.2
const maxSlowdownFraction = 0.12

// Resynthesizer re-runs TTS for a single sentence with replaced text, used
// only for the sentences selected by the simplification retry.
type Resynthesizer interface {
	Resynthesize(ctx context.Context, sent domain.Sentence) domain.Sentence
}

// Aligner implements component C5. It never reorders sentences and never
// alters TargetDurationMs.
type Aligner struct {
	simplifier  Simplifier
	resynth     Resynthesizer
}

func New(simplifier Simplifier, resynth Resynthesizer) *Aligner {
	return &Aligner{simplifier: simplifier, resynth: resynth}
}

// Align runs the full per-batch algorithm in place and returns the batch
// with every sentence annotated, attempting at most one simplification
// retry for sentences left over-speed by the first correction pass.
func (a *Aligner) Align(ctx context.Context, batch domain.Batch) domain.Batch {
	applyProportionalCorrection(batch.Sentences)

	fast := fastIndices(batch.Sentences, maxSpeed)
	if len(fast) == 0 {
		observeSpeeds(batch.Sentences)
		return batch
	}

	if a.simplifier == nil || a.resynth == nil {
		slog.Warn("no simplifier configured, over-speed sentences kept as-is", "count", len(fast))
		return batch
	}
	metrics.SimplificationRetries.Add(float64(len(fast)))

	if err := a.retrySimplification(ctx, batch.Sentences, fast); err != nil {
		slog.Warn("simplification failed, keeping original translated text", "error", err)
		return batch
	}

	applyProportionalCorrection(batch.Sentences)
	observeSpeeds(batch.Sentences)
	return batch
}

func observeSpeeds(sentences []domain.Sentence) {
	for _, s := range sentences {
		if s.Align != nil {
			metrics.AlignSpeed.Observe(s.Align.Speed)
		}
	}
}

// applyProportionalCorrection implements steps 1-3 of the per-batch
// algorithm: distribute the total duration/target mismatch proportionally
// across over- and under-running sentences.
func applyProportionalCorrection(sentences []domain.Sentence) {
	n := len(sentences)
	diffs := make([]float64, n)
	var totalDiff, posSum, negSum float64

	for i := range sentences {
		if err := domain.RequireStage(&sentences[i], domain.StageAlign); err != nil {
			slog.Warn("align stage entry guard failed", "sequence", sentences[i].Sequence, "error", err)
		}
	}

	for i, s := range sentences {
		diff := s.DurationMs - float64(s.TargetDurationMs)
		diffs[i] = diff
		totalDiff += diff
		if diff > 0 {
			posSum += diff
		} else {
			negSum += -diff
		}
	}

	for i := range sentences {
		s := &sentences[i]
		diff := diffs[i]

		switch {
		case totalDiff > 0 && diff > 0 && posSum > 0:
			adjustment := totalDiff * diff / posSum
			adjustedDuration := s.DurationMs - adjustment
			if adjustedDuration < 1e-3 {
				adjustedDuration = 1e-3
			}
			s.Align = &domain.AlignResult{
				Speed:            s.DurationMs / adjustedDuration,
				EndingSilenceMs:  0,
				SpeechDurationMs: adjustedDuration,
			}
		case totalDiff < 0 && diff < 0 && negSum > 0:
			needed := (-totalDiff) * (-diff) / negSum
			slow := needed
			slowCap := maxSlowdownFraction * s.DurationMs
			if slow > slowCap {
				slow = slowCap
			}
			adjustedDuration := s.DurationMs + slow
			remainder := needed - slow
			s.Align = &domain.AlignResult{
				Speed:            s.DurationMs / adjustedDuration,
				EndingSilenceMs:  int(remainder),
				SpeechDurationMs: adjustedDuration,
			}
		default:
			s.Align = &domain.AlignResult{
				Speed:            1.0,
				EndingSilenceMs:  0,
				SpeechDurationMs: s.DurationMs,
			}
		}
	}
}

// fastIndices returns the indices of sentences whose Speed exceeds cap.
func fastIndices(sentences []domain.Sentence, cap float64) []int {
	var idx []int
	for i, s := range sentences {
		if s.Align != nil && s.Align.Speed > cap {
			idx = append(idx, i)
		}
	}
	return idx
}

// retrySimplification sends the fast sentences to the Simplifier, selects a
// candidate rewrite per sentence, re-synthesizes, and splices the result
// back into the batch. This runs at most once per Align call.
func (a *Aligner) retrySimplification(ctx context.Context, sentences []domain.Sentence, fastIdx []int) error {
	for _, i := range fastIdx {
		s := &sentences[i]
		candidates, err := a.simplifier.Simplify(ctx, s.TranslatedText)
		if err != nil || len(candidates) == 0 {
			slog.Warn("simplification produced nothing usable, keeping original text", "sequence", s.Sequence)
			continue
		}

		idealLength := float64(len(s.OriginalText)) * (maxSpeed / s.Align.Speed)
		chosen := pickCandidate(candidates, idealLength)
		if chosen == "" {
			continue
		}

		s.TranslatedText = chosen
		*s = a.resynth.Resynthesize(ctx, *s)
	}
	return nil
}

// pickCandidate prefers the longest candidate whose length is <= idealLength;
// if none qualifies, takes the shortest candidate that exceeds it.
func pickCandidate(candidates []string, idealLength float64) string {
	sorted := append([]string{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	best := ""
	for _, c := range sorted {
		if float64(len(c)) <= idealLength {
			best = c // keep scanning for a longer qualifying one
		}
	}
	if best != "" {
		return best
	}

	for _, c := range sorted {
		if float64(len(c)) > idealLength {
			return c
		}
	}
	return ""
}
