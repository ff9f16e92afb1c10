package align

import (
	"context"
)

// Simplifier asks an external LLM for five candidate rewrites of a
// sentence's translated text, at escalating aggressiveness, in a single
// JSON-valued call. One implementation per TRANSLATION_MODEL backend.
type Simplifier interface {
	Simplify(ctx context.Context, originalText string) ([]string, error)
}

// aggressivenessLevels mirrors the five escalating levels the spec names.
var aggressivenessLevels = []string{"minimal", "slight", "moderate", "significant", "extreme"}

const simplifyPromptTemplate = `Rewrite the following sentence at five escalating levels of brevity: %s.
Return ONLY a JSON array of exactly 5 strings, ordered minimal -> extreme, no prose.
Sentence: %q`

func joinLevels(levels []string) string {
	out := ""
	for i, l := range levels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}
