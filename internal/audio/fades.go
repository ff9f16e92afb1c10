package audio

import "math"

// EqualPowerFadeIn applies an equal-power (sqrt ramp) fade-in over the first
// n samples of buf, in place.
func EqualPowerFadeIn(buf []float32, n int) {
	if n > len(buf) {
		n = len(buf)
	}
	denom := float64(n - 1)
	if denom < 1 {
		denom = 1
	}
	for i := 0; i < n; i++ {
		t := float64(i) / denom
		buf[i] *= float32(math.Sqrt(t))
	}
}

// EqualPowerFadeOut applies an equal-power fade-out over the last n samples
// of buf, in place.
func EqualPowerFadeOut(buf []float32, n int) {
	if n > len(buf) {
		n = len(buf)
	}
	start := len(buf) - n
	denom := float64(n - 1)
	if denom < 1 {
		denom = 1
	}
	for i := 0; i < n; i++ {
		t := float64(i) / denom
		buf[start+i] *= float32(math.Sqrt(1 - t))
	}
}

// CrossFade overlaps the tail of a with the head of b using equal-power
// ramps over n samples, returning the concatenated result. n is clamped to
// the shorter of the two buffers.
func CrossFade(a, b []float32, n int) []float32 {
	if n > len(a) {
		n = len(a)
	}
	if n > len(b) {
		n = len(b)
	}
	if n <= 0 {
		return append(append([]float32{}, a...), b...)
	}

	out := make([]float32, 0, len(a)+len(b)-n)
	out = append(out, a[:len(a)-n]...)

	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		fadeOut := float32(math.Sqrt(1 - t))
		fadeIn := float32(math.Sqrt(t))
		out = append(out, a[len(a)-n+i]*fadeOut+b[i]*fadeIn)
	}

	out = append(out, b[n:]...)
	return out
}

// Silence returns n samples of silence (zero PCM).
func Silence(n int) []float32 {
	return make([]float32, n)
}

// MsToSamples converts a millisecond duration to a sample count at sr.
func MsToSamples(ms int64, sr int) int {
	return int(float64(ms) / 1000 * float64(sr))
}

// SamplesToMs converts a sample count at sr to a millisecond duration.
func SamplesToMs(n, sr int) float64 {
	return float64(n) / float64(sr) * 1000
}

// Normalize scales buf in place so max(|x|) <= threshold, if it currently
// exceeds threshold. No-op on silence.
func Normalize(buf []float32, threshold float64) {
	var peak float64
	for _, s := range buf {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak <= threshold || peak == 0 {
		return
	}
	scale := float32(threshold / peak)
	for i := range buf {
		buf[i] *= scale
	}
}
