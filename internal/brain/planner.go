package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const maxSteps = 5

var connectives = []string{
	" then ", " and then ", " after that ",
	" also ", " first ", " next ",
	" finally ", " step 1", " step 2",
}

// Planner splits compound requests into ordered steps.
type Planner struct {
	llm llm.Client
	log zerolog.Logger
}

func NewPlanner(client llm.Client) *Planner {
	return &Planner{llm: client, log: logging.For("brain")}
}

// HasConnective reports whether text contains a sequencing connective.
func HasConnective(text string) bool {
	lower := strings.ToLower(text)
	for _, c := range connectives {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// Plan returns two or more steps, or nil when the request is a single task
// or the model reply cannot be used.
func (p *Planner) Plan(ctx context.Context, text string) []string {
	if !HasConnective(text) {
		return nil
	}

	prompt := fmt.Sprintf(`Break this request into individual steps (max 5 steps).
If it's actually just one task, reply with "SINGLE".

Request: "%s"

Reply as a JSON array of strings, like: ["step 1", "step 2"]
Or reply: SINGLE`, text)

	reply, err := p.llm.Generate(ctx, llm.TierFast, prompt, "")
	if err != nil {
		p.log.Warn().Err(err).Msg("planning failed")
		return nil
	}
	return ParsePlan(reply)
}

// ParsePlan applies the plan reply contract: SINGLE anywhere means no plan;
// otherwise the bracketed span must be an array of more than one element.
// Steps past the fifth are dropped.
func ParsePlan(reply string) []string {
	if strings.Contains(strings.ToUpper(reply), "SINGLE") {
		return nil
	}
	items, ok := llm.JSONArray(reply)
	if !ok || len(items) < 2 {
		return nil
	}
	if len(items) > maxSteps {
		items = items[:maxSteps]
	}
	steps := make([]string, 0, len(items))
	for _, it := range items {
		steps = append(steps, it.String())
	}
	return steps
}
