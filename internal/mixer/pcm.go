package mixer

import (
	"encoding/binary"
	"math"
)

// float32PCMToBytes encodes samples as little-endian raw f32le, the format
// ffmpeg's -f f32le expects on both ends of the atempo pipe.
func float32PCMToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func bytesToFloat32PCM(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
