package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
	"github.com/tidwall/gjson"
)

// HTTPSynthesizer calls the external voice-cloning TTS sidecar: given a
// reference clip and target text, it returns synthesized int16 PCM.
type HTTPSynthesizer struct {
	client *http.Client
	url    string
	apiKey string
}

func NewHTTPSynthesizer(url, apiKey string, timeout time.Duration) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		client: &http.Client{Timeout: timeout},
		url:    url,
		apiKey: apiKey,
	}
}

type synthesizeRequest struct {
	PromptAudioB64 string `json:"prompt_audio_b64"`
	Text           string `json:"text"`
}

// Synthesize satisfies Synthesizer. The sidecar returns base64-encoded
// little-endian int16 PCM plus its sample rate.
func (c *HTTPSynthesizer) Synthesize(ctx context.Context, promptAudioPath, text string) ([]int16, int, error) {
	promptBytes, err := os.ReadFile(promptAudioPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read prompt audio: %v", perr.SynthesisFailed, err)
	}

	body, err := json.Marshal(synthesizeRequest{
		PromptAudioB64: base64.StdEncoding.EncodeToString(promptBytes),
		Text:           text,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encode request: %v", perr.SynthesisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", perr.SynthesisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", perr.SynthesisFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", perr.SynthesisFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: sidecar returned %d: %s", perr.SynthesisFailed, resp.StatusCode, raw)
	}

	pcmB64 := gjson.GetBytes(raw, "pcm_b64").String()
	sampleRate := int(gjson.GetBytes(raw, "sample_rate").Int())
	if pcmB64 == "" || sampleRate == 0 {
		return nil, 0, fmt.Errorf("%w: malformed sidecar response", perr.SynthesisFailed)
	}

	pcmBytes, err := base64.StdEncoding.DecodeString(pcmB64)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: decode pcm: %v", perr.SynthesisFailed, err)
	}

	return bytesToInt16PCM(pcmBytes), sampleRate, nil
}

func bytesToInt16PCM(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	return out
}
