package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
	"github.com/tidwall/gjson"
)

// HTTPSeparator calls the external vocal-separation sidecar over HTTP,
// exchanging raw f32le PCM as base64 the same way the TTS sidecar does.
type HTTPSeparator struct {
	client *http.Client
	url    string
}

func NewHTTPSeparator(url string, timeout time.Duration) *HTTPSeparator {
	return &HTTPSeparator{client: &http.Client{Timeout: timeout}, url: url}
}

type separateRequest struct {
	PCMB64     string `json:"pcm_b64"`
	SampleRate int    `json:"sample_rate"`
}

func (c *HTTPSeparator) Separate(ctx context.Context, pcm []float32, sampleRate int) ([]float32, []float32, error) {
	body, err := json.Marshal(separateRequest{
		PCMB64:     base64.StdEncoding.EncodeToString(float32ToBytes(pcm)),
		SampleRate: sampleRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode request: %v", perr.SeparationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", perr.SeparationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", perr.SeparationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", perr.SeparationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: sidecar returned %d: %s", perr.SeparationFailed, resp.StatusCode, raw)
	}

	vocalsB64 := gjson.GetBytes(raw, "vocals_b64").String()
	instrumentalB64 := gjson.GetBytes(raw, "instrumental_b64").String()
	if vocalsB64 == "" {
		return nil, nil, fmt.Errorf("%w: malformed sidecar response", perr.SeparationFailed)
	}

	vocalsBytes, err := base64.StdEncoding.DecodeString(vocalsB64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode vocals: %v", perr.SeparationFailed, err)
	}
	vocals := bytesToFloat32(vocalsBytes)

	var instrumental []float32
	if instrumentalB64 != "" {
		instrumentalBytes, decErr := base64.StdEncoding.DecodeString(instrumentalB64)
		if decErr == nil {
			instrumental = bytesToFloat32(instrumentalBytes)
		}
	}

	return vocals, instrumental, nil
}

func float32ToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
