// Package audio holds PCM utilities shared by the Slicer, TTS Producer, and
// Mixer: WAV encode/decode, resampling, and interval bookkeeping.
package audio

import (
	"bytes"
	"fmt"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes mono float32 PCM samples (range [-1, 1]) as a 16-bit PCM
// WAV file at sampleRate.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	ibuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		clamped := float32(math.Max(-1.0, math.Min(1.0, float64(s))))
		ibuf.Data[i] = int(clamped * math.MaxInt16)
	}

	sb := &seekBuffer{}
	enc := wav.NewEncoder(sb, sampleRate, 16, 1, 1)
	if err := enc.Write(ibuf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return sb.bytes(), nil
}

// DecodeWAV reads a WAV file into mono float32 PCM samples and its sample
// rate. Multi-channel input is downmixed by averaging channels.
func DecodeWAV(data []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := dec.NumChans
	if channels == 0 {
		channels = 1
	}
	n := len(pcm.Data) / int(channels)
	samples := make([]float32, n)
	maxVal := float64(int(1) << (pcm.SourceBitDepth - 1))
	if maxVal == 0 {
		maxVal = math.MaxInt16
	}

	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < int(channels); c++ {
			sum += float64(pcm.Data[i*int(channels)+c])
		}
		samples[i] = float32((sum / float64(channels)) / maxVal)
	}

	return samples, int(dec.SampleRate), nil
}

// seekBuffer is a minimal io.WriteSeeker over an in-memory byte slice, which
// is all the wav encoder needs in order to patch RIFF/data chunk sizes after
// streaming the samples.
type seekBuffer struct {
	data []byte
	pos  int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	copy(s.data[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = offset
	case 1:
		s.pos += offset
	case 2:
		s.pos = int64(len(s.data)) + offset
	default:
		return 0, fmt.Errorf("seekBuffer: invalid whence %d", whence)
	}
	return s.pos, nil
}

func (s *seekBuffer) bytes() []byte {
	return s.data
}
