package audio

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
)

// SlicerConfig mirrors the config table's AUDIO_CLIP_* options.
type SlicerConfig struct {
	GoalMs              int64
	MinMs               int64
	PaddingMs           int64
	AllowCrossNonSpeech bool
	SampleRate          int
}

// Slicer builds one speaker-reference clip per contiguous same-speaker run
// of sentences, per component C3.
type Slicer struct {
	cfg SlicerConfig
}

func NewSlicer(cfg SlicerConfig) *Slicer {
	return &Slicer{cfg: cfg}
}

type speechItem struct {
	sentenceIdx int
}

// Slice reads vocals (mono float32 PCM at cfg.SampleRate) and writes one WAV
// clip per speaker block into scratchDir, mutating each sentence's
// PromptAudioPath in place. Every sentence of a block that yields a clip gets
// that clip's path, including truncated-tail sentences that were not
// physically included in the clip audio. Sentences of a block dropped for
// being shorter than MinMs keep an empty PromptAudioPath; they are not given
// the clip of another block of the same speaker.
func (s *Slicer) Slice(vocals []float32, sentences []domain.Sentence, scratchDir string) ([]domain.AudioClip, error) {
	items := make([]speechItem, len(sentences))
	for i := range sentences {
		items[i] = speechItem{sentenceIdx: i}
	}

	blocks := s.groupBlocks(items, sentences)

	var clips []domain.AudioClip
	clipNum := 0
	for _, block := range blocks {
		clip, err := s.buildClip(vocals, sentences, block, scratchDir, &clipNum)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", perr.SlicingFailed, err)
		}
		if clip == nil {
			continue
		}
		clips = append(clips, *clip)
		for _, idx := range block {
			sentences[idx].PromptAudioPath = clip.Path
		}
	}

	return clips, nil
}

// groupBlocks splits items into contiguous same-speaker blocks. When
// AllowCrossNonSpeech is false, a block additionally breaks whenever the
// underlying sentence sequence is not strictly consecutive.
func (s *Slicer) groupBlocks(items []speechItem, sentences []domain.Sentence) [][]int {
	var blocks [][]int
	var current []int

	for _, it := range items {
		if len(current) == 0 {
			current = append(current, it.sentenceIdx)
			continue
		}
		prevIdx := current[len(current)-1]
		sameSpeaker := sentences[it.sentenceIdx].Speaker == sentences[prevIdx].Speaker
		consecutive := s.cfg.AllowCrossNonSpeech || sentences[it.sentenceIdx].Sequence == sentences[prevIdx].Sequence+1
		if sameSpeaker && consecutive {
			current = append(current, it.sentenceIdx)
		} else {
			blocks = append(blocks, current)
			current = []int{it.sentenceIdx}
		}
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// buildClip extracts, stitches, fades, and normalizes one speaker block into
// a WAV file, truncating the tail if the block's padded duration exceeds
// the configured goal. Returns nil, nil if the block's total duration is
// below MinMs (the block is dropped, not an error).
func (s *Slicer) buildClip(vocals []float32, sentences []domain.Sentence, block []int, scratchDir string, clipNum *int) (*domain.AudioClip, error) {
	var intervals []domain.Interval
	var totalMs int64

	for _, idx := range block {
		sent := sentences[idx]
		start := max64(0, sent.StartMs-s.cfg.PaddingMs)
		end := sent.EndMs + s.cfg.PaddingMs
		dur := end - start
		if totalMs+dur > s.cfg.GoalMs {
			remaining := s.cfg.GoalMs - totalMs
			if remaining <= 0 {
				break
			}
			end = start + remaining
			intervals = append(intervals, domain.Interval{StartMs: start, EndMs: end})
			totalMs += remaining
			break
		}
		intervals = append(intervals, domain.Interval{StartMs: start, EndMs: end})
		totalMs += dur
	}

	if totalMs < s.cfg.MinMs {
		return nil, nil
	}

	merged := mergeIntervals(intervals)
	pcm := s.extractAndStitch(vocals, merged)
	Normalize(pcm, 0.9)

	*clipNum++
	id := fmt.Sprintf("Clip_%d", *clipNum)
	path := filepath.Join(scratchDir, id+".wav")

	wavBytes, err := EncodeWAV(pcm, s.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode clip %s: %w", id, err)
	}
	if err := writeFile(path, wavBytes); err != nil {
		return nil, fmt.Errorf("write clip %s: %w", id, err)
	}

	clip := &domain.AudioClip{
		ID:              id,
		Speaker:         sentences[block[0]].Speaker,
		TotalDurationMs: totalMs,
		Segments:        merged,
		Path:            path,
	}
	return clip, nil
}

// extractAndStitch pulls each merged interval's PCM out of vocals and
// concatenates them with a short equal-power fade-in on the first interval,
// fade-out on the last, and symmetric fades at interior seams.
func (s *Slicer) extractAndStitch(vocals []float32, intervals []domain.Interval) []float32 {
	const fadeMs = 20
	fadeN := MsToSamples(fadeMs, s.cfg.SampleRate)

	var out []float32
	for i, iv := range intervals {
		startSample := MsToSamples(iv.StartMs, s.cfg.SampleRate)
		endSample := MsToSamples(iv.EndMs, s.cfg.SampleRate)
		if startSample < 0 {
			startSample = 0
		}
		if endSample > len(vocals) {
			endSample = len(vocals)
		}
		if startSample >= endSample {
			continue
		}
		segment := append([]float32{}, vocals[startSample:endSample]...)

		if i == 0 {
			EqualPowerFadeIn(segment, fadeN)
		}
		if i == len(intervals)-1 {
			EqualPowerFadeOut(segment, fadeN)
		}

		if len(out) == 0 {
			out = segment
		} else {
			out = CrossFade(out, segment, fadeN)
		}
	}
	return out
}

// mergeIntervals sorts intervals by start and coalesces overlapping or
// touching spans.
func mergeIntervals(intervals []domain.Interval) []domain.Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]domain.Interval{}, intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	merged := []domain.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.StartMs <= last.EndMs {
			if iv.EndMs > last.EndMs {
				last.EndMs = iv.EndMs
			}
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
