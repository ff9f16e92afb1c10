package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAV_RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -0.25, 0.999, -0.999}

	encoded, err := EncodeWAV(samples, 16000)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, rate, err := DecodeWAV(encoded)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	require.Len(t, decoded, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], decoded[i], 0.01)
	}
}

func TestEncodeWAV_ClampsOutOfRangeSamples(t *testing.T) {
	samples := []float32{2.0, -2.0}
	encoded, err := EncodeWAV(samples, 8000)
	require.NoError(t, err)

	decoded, _, err := DecodeWAV(encoded)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, decoded[0], 0.01)
	assert.InDelta(t, -1.0, decoded[1], 0.01)
}

func TestSeekBuffer_WriteSeekGrowsAndOverwrites(t *testing.T) {
	sb := &seekBuffer{}
	n, err := sb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pos, err := sb.Seek(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	_, err = sb.Write([]byte("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), sb.bytes())
}

func TestSeekBuffer_SeekInvalidWhence(t *testing.T) {
	sb := &seekBuffer{}
	_, err := sb.Seek(0, 99)
	assert.Error(t, err)
}
