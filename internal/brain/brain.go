// Package brain decides what a request means and how it should be answered:
// intent classification, tier selection, multi-step planning and the
// reasoning pipeline used by the conversational handlers.
package brain

import (
	"context"
	"time"

	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/llm"
)

// RoutingResult is the routing decision for one request.
type RoutingResult struct {
	Intent        Intent
	UserInput     string
	MemoryContext string
	Model         llm.Tier
	// Steps is nil or holds at least two sub-requests.
	Steps []string
}

type Brain struct {
	Classifier *Classifier
	Selector   Selector
	Reasoner   *Reasoner
	Planner    *Planner
	llm        llm.Client
}

func New(client llm.Client, cfg *config.Config) *Brain {
	return NewWithClock(client, cfg, time.Now)
}

func NewWithClock(client llm.Client, cfg *config.Config, now func() time.Time) *Brain {
	return &Brain{
		Classifier: NewClassifier(client),
		Selector:   Selector{Threshold: cfg.Brain.ComplexityThreshold},
		Reasoner: NewReasoner(client, ReasonerConfig{
			Persona:       cfg.PersonaPrompt(),
			AssistantName: cfg.Agent.Name,
			Threshold:     cfg.Brain.ComplexityThreshold,
			MaxRetries:    cfg.Brain.MaxReflectionRetries,
			Now:           now,
		}),
		Planner: NewPlanner(client),
		llm:     client,
	}
}

// LLM exposes the inference client to handlers that call it directly.
func (b *Brain) LLM() llm.Client { return b.llm }

// Route classifies, selects a tier and plans input.
func (b *Brain) Route(ctx context.Context, input, memCtx string) RoutingResult {
	intent := b.Classifier.Classify(ctx, input)
	tier := b.Selector.Select(input)
	steps := b.Planner.Plan(ctx, input)
	return RoutingResult{
		Intent:        intent,
		UserInput:     input,
		MemoryContext: memCtx,
		Model:         tier,
		Steps:         steps,
	}
}

// Respond runs the reasoning pipeline.
func (b *Brain) Respond(ctx context.Context, input, memCtx string) string {
	return b.Reasoner.Respond(ctx, input, memCtx)
}
