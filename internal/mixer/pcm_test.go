package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32PCMRoundTrip(t *testing.T) {
	samples := []float32{0, 1, -1, 0.5, -0.5, 0.333333, -0.999999}

	encoded := float32PCMToBytes(samples)
	require.Len(t, encoded, len(samples)*4)

	decoded := bytesToFloat32PCM(encoded)
	require.Len(t, decoded, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], decoded[i], 1e-6)
	}
}

func TestBytesToFloat32PCM_Empty(t *testing.T) {
	assert.Empty(t, bytesToFloat32PCM(nil))
}

func TestFloat32PCMToBytes_Empty(t *testing.T) {
	assert.Empty(t, float32PCMToBytes(nil))
}
