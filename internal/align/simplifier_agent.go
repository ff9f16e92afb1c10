package align

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// AgentSimplifier calls an OpenAI-compatible chat-completions backend
// through the agents SDK's generic provider, grounded on the teacher's
// initLLM/AgentLLM.Register pattern (DeepSeek/Gemini/Grok/Groq are, like the
// teacher's Ollama backend, OpenAI-compatible-but-non-OpenAI endpoints
// addressed by pointing a BaseURL override at them rather than OpenAI's).
type AgentSimplifier struct {
	provider  agents.ModelProvider
	model     string
	backend   string
	maxTokens int
}

// NewAgentSimplifier builds a simplifier backend for one TRANSLATION_MODEL
// value, reached through a custom-BaseURL OpenAI-compatible provider.
func NewAgentSimplifier(backend, baseURL, apiKey, model string, maxTokens int) *AgentSimplifier {
	provider := agents.NewOpenAIProvider(agents.OpenAIProviderParams{
		BaseURL:      param.NewOpt(baseURL),
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(false),
	})
	return &AgentSimplifier{provider: provider, model: model, backend: backend, maxTokens: maxTokens}
}

func (s *AgentSimplifier) Simplify(ctx context.Context, originalText string) ([]string, error) {
	prompt := fmt.Sprintf(simplifyPromptTemplate, joinLevels(aggressivenessLevels), originalText)

	agent := agents.New(s.backend + "-simplifier").
		WithInstructions("Return ONLY the JSON array the user asks for, no prose, no markdown fences.").
		WithModel(s.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(s.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   s.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s simplify start: %w", s.backend, err)
	}

	var textBuf strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok {
			continue
		}
		if raw.Data.Type != "response.output_text.delta" {
			continue
		}
		textBuf.WriteString(raw.Data.Delta)
	}
	if streamErr := <-errCh; streamErr != nil {
		return nil, fmt.Errorf("%s simplify stream: %w", s.backend, streamErr)
	}

	content := strings.TrimSpace(textBuf.String())
	if content == "" {
		return nil, fmt.Errorf("%s simplify: empty response", s.backend)
	}

	var candidates []string
	if err := json.Unmarshal([]byte(content), &candidates); err != nil {
		return nil, fmt.Errorf("%s simplify: parse candidates: %w", s.backend, err)
	}
	return candidates, nil
}
