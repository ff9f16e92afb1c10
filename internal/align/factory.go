package align

import (
	"github.com/hubenschmidt/dubstream-gateway/internal/router"
)

// BackendConfig is one TRANSLATION_MODEL entry's endpoint/credentials.
type BackendConfig struct {
	Name   string // deepseek | gemini | grok | groq
	URL    string
	APIKey string
	Model  string
}

// simplifierMaxTokens bounds the five-candidate rewrite response; five short
// sentences never approach this, it only guards against a runaway backend.
const simplifierMaxTokens = 1024

// NewSimplifierRouter builds a router.Router[Simplifier] from the four
// backend configs, built once at startup from config per the design note
// against runtime reflection or a global registry. Every backend is an
// OpenAI-compatible chat-completions endpoint reached through the agents
// SDK's provider abstraction with a custom BaseURL, not a bespoke HTTP
// client per vendor.
func NewSimplifierRouter(backends []BackendConfig, fallback string) *router.Router[Simplifier] {
	m := make(map[string]Simplifier, len(backends))
	for _, b := range backends {
		m[b.Name] = NewAgentSimplifier(b.Name, b.URL, b.APIKey, b.Model, simplifierMaxTokens)
	}
	return router.New(m, fallback)
}
