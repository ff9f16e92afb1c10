package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireStage_SliceRejectsMissingTargetDuration(t *testing.T) {
	s := &Sentence{Sequence: 1, StartMs: 0, EndMs: 1000}
	err := RequireStage(s, StageSlice)
	assert.Error(t, err)
}

func TestRequireStage_SliceAllowsZeroLengthSentence(t *testing.T) {
	s := &Sentence{Sequence: 1, StartMs: 500, EndMs: 500}
	assert.NoError(t, RequireStage(s, StageSlice))
}

func TestRequireStage_TTSTolerantOfMissingPromptAudio(t *testing.T) {
	s := &Sentence{Sequence: 1}
	assert.NoError(t, RequireStage(s, StageTTS))
}

func TestRequireStage_AlignRejectsMissingTTSOutput(t *testing.T) {
	s := &Sentence{Sequence: 1, DurationMs: 900}
	err := RequireStage(s, StageAlign)
	assert.Error(t, err)
}

func TestRequireStage_AlignAllowsPopulatedAudio(t *testing.T) {
	s := &Sentence{Sequence: 1, GeneratedAudio: []float32{0, 0}, DurationMs: 900}
	assert.NoError(t, RequireStage(s, StageAlign))
}

func TestRequireStage_StampRejectsMissingAlignResult(t *testing.T) {
	s := &Sentence{Sequence: 1}
	err := RequireStage(s, StageStamp)
	assert.Error(t, err)
}

func TestRequireStage_StampAllowsPopulatedAlignResult(t *testing.T) {
	s := &Sentence{Sequence: 1, Align: &AlignResult{Speed: 1.0}}
	assert.NoError(t, RequireStage(s, StageStamp))
}

func TestRequireStage_UnknownStageIsNoop(t *testing.T) {
	s := &Sentence{Sequence: 1}
	assert.NoError(t, RequireStage(s, "unknown-stage"))
}
