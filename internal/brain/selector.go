package brain

import (
	"strings"

	"github.com/stellarlinkco/jarvis/internal/llm"
)

var depthPhrases = []string{
	"explain in detail", "step by step", "compare",
	"analyze", "write a long", "essay", "comprehensive",
	"pros and cons", "in depth", "elaborate", "thorough",
	"multi-step", "complex", "advanced",
}

// Selector picks the inference tier from request length and depth phrases.
type Selector struct {
	Threshold int
}

// Select returns the smart tier only for requests longer than the threshold
// that also ask for depth.
func (s Selector) Select(text string) llm.Tier {
	if WordCount(text) <= s.Threshold {
		return llm.TierFast
	}
	lower := strings.ToLower(text)
	for _, p := range depthPhrases {
		if strings.Contains(lower, p) {
			return llm.TierSmart
		}
	}
	return llm.TierFast
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
