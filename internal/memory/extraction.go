package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

// factIndicators gate extraction: statements without any of them are not
// self-referential and skip the inference call.
var factIndicators = []string{
	"my name", "i am", "i'm", "i like", "i hate", "i prefer",
	"i work", "i live", "i study", "remember that", "my favorite",
	"my wife", "my husband", "my dog", "my cat", "my car",
	"i was born", "my birthday", "my age", "my email", "my phone",
	"i use", "i need", "call me",
}

// ExtractedFact is one (category, key, value) triple produced by extraction.
type ExtractedFact struct {
	Category string
	Key      string
	Value    string
}

// FactExtractor asks the fast tier to pull personal facts out of a statement.
type FactExtractor struct {
	llm llm.Client
	log zerolog.Logger
}

func NewFactExtractor(client llm.Client) *FactExtractor {
	return &FactExtractor{llm: client, log: logging.For("memory")}
}

// LooksPersonal reports whether input contains a self-referential phrase.
func LooksPersonal(input string) bool {
	lower := strings.ToLower(input)
	for _, ind := range factIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// Extract returns the facts found in input. Backend failures and malformed
// replies yield no facts.
func (x *FactExtractor) Extract(ctx context.Context, input string) []ExtractedFact {
	if x.llm == nil || !LooksPersonal(input) {
		return nil
	}

	prompt := fmt.Sprintf(`Extract personal facts from this statement.
If there are no personal facts, reply with "NONE".

Statement: "%s"

Reply as JSON array: [{"category": "personal|preference|work|location", "key": "short_key", "value": "the fact"}]
Or reply: NONE`, input)

	reply, err := x.llm.Generate(ctx, llm.TierFast, prompt, "")
	if err != nil {
		x.log.Warn().Err(err).Msg("fact extraction failed")
		return nil
	}
	return parseFacts(reply)
}

func parseFacts(reply string) []ExtractedFact {
	if strings.Contains(strings.ToUpper(reply), "NONE") {
		return nil
	}
	items, ok := llm.JSONArray(reply)
	if !ok {
		return nil
	}

	var out []ExtractedFact
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		key, value := item.Get("key"), item.Get("value")
		if !key.Exists() || !value.Exists() || strings.TrimSpace(key.String()) == "" {
			continue
		}
		category := strings.TrimSpace(item.Get("category").String())
		if category == "" {
			category = "personal"
		}
		out = append(out, ExtractedFact{
			Category: category,
			Key:      strings.TrimSpace(key.String()),
			Value:    strings.TrimSpace(value.String()),
		})
	}
	return out
}
