package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualPowerFadeIn(t *testing.T) {
	buf := []float32{1, 1, 1, 1}
	EqualPowerFadeIn(buf, 4)

	assert.InDelta(t, 0, buf[0], 1e-6)
	assert.InDelta(t, 1, buf[3], 1e-6)
	assert.Less(t, buf[1], buf[2])
}

func TestEqualPowerFadeIn_ClampsToBufferLength(t *testing.T) {
	buf := []float32{1, 1}
	assert.NotPanics(t, func() { EqualPowerFadeIn(buf, 10) })
}

func TestEqualPowerFadeOut(t *testing.T) {
	buf := []float32{1, 1, 1, 1}
	EqualPowerFadeOut(buf, 4)

	assert.InDelta(t, 1, buf[0], 1e-6)
	assert.InDelta(t, 0, buf[3], 1e-6)
}

func TestCrossFade_OverlapsTailAndHead(t *testing.T) {
	a := []float32{1, 1, 1, 1}
	b := []float32{1, 1, 1, 1}

	out := CrossFade(a, b, 2)
	require.Len(t, out, len(a)+len(b)-2)
	assert.Equal(t, float32(1), out[0])
	assert.Equal(t, float32(1), out[len(out)-1])
}

func TestCrossFade_ZeroOverlapIsPlainConcat(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}
	assert.Equal(t, []float32{1, 2, 3, 4}, CrossFade(a, b, 0))
}

func TestCrossFade_ClampsOverlapToShorterBuffer(t *testing.T) {
	a := []float32{1, 1, 1}
	b := []float32{1}
	assert.NotPanics(t, func() { CrossFade(a, b, 10) })
}

func TestSilence(t *testing.T) {
	assert.Equal(t, []float32{0, 0, 0}, Silence(3))
}

func TestMsToSamplesAndBack(t *testing.T) {
	sr := 16000
	n := MsToSamples(1000, sr)
	assert.Equal(t, sr, n)
	assert.InDelta(t, 1000, SamplesToMs(n, sr), 1e-9)
}

func TestNormalize_ScalesDownWhenOverThreshold(t *testing.T) {
	buf := []float32{0.5, -1.0, 0.25}
	Normalize(buf, 0.5)
	assert.InDelta(t, 0.5, buf[1]*-1, 1e-6)
}

func TestNormalize_NoopWhenWithinThreshold(t *testing.T) {
	buf := []float32{0.1, -0.2, 0.05}
	cp := append([]float32{}, buf...)
	Normalize(buf, 0.5)
	assert.Equal(t, cp, buf)
}

func TestNormalize_NoopOnSilence(t *testing.T) {
	buf := []float32{0, 0, 0}
	Normalize(buf, 0.5)
	assert.Equal(t, []float32{0, 0, 0}, buf)
}
