package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResample_SameRateReturnsInputUnchanged(t *testing.T) {
	in := []float32{1, 2, 3}
	out := Resample(in, 16000, 16000)
	assert.Equal(t, in, out)
}

func TestResample_Downsample(t *testing.T) {
	in := make([]float32, 8)
	for i := range in {
		in[i] = float32(i)
	}
	out := Resample(in, 16000, 8000)
	assert.Len(t, out, 4)
}

func TestResample_Upsample(t *testing.T) {
	in := []float32{0, 1}
	out := Resample(in, 8000, 16000)
	assert.Len(t, out, 4)
	assert.InDelta(t, 0, out[0], 1e-6)
}

func TestInterpolate_ClampsAtBufferEnd(t *testing.T) {
	samples := []float32{1, 2, 3}
	assert.Equal(t, float32(3), interpolate(samples, 2, 0.5))
}

func TestInterpolate_LinearBetweenSamples(t *testing.T) {
	samples := []float32{0, 10}
	assert.InDelta(t, 5, interpolate(samples, 0, 0.5), 1e-6)
}
