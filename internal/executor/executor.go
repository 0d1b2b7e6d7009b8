// Package executor runs a routing decision against the intent handlers.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/brain"
	"github.com/stellarlinkco/jarvis/internal/handlers"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

var errNoHandler = errors.New("no handler registered")

// Classifier assigns an intent to each step of a multi-step plan.
type Classifier interface {
	Classify(ctx context.Context, text string) brain.Intent
}

type Executor struct {
	classifier Classifier
	handlers   map[brain.Intent]handlers.Handler
	log        zerolog.Logger
}

func New(classifier Classifier, hs map[brain.Intent]handlers.Handler) *Executor {
	registry := make(map[brain.Intent]handlers.Handler, len(hs))
	for intent, h := range hs {
		if h != nil {
			registry[intent] = h
		}
	}
	return &Executor{
		classifier: classifier,
		handlers:   registry,
		log:        logging.For("executor"),
	}
}

// Execute always returns text for the user. Handler failures are explained
// through the chat handler instead of surfacing as errors.
func (e *Executor) Execute(ctx context.Context, r brain.RoutingResult) string {
	if len(r.Steps) > 1 {
		return e.executeSteps(ctx, r)
	}
	out, err := e.run(ctx, r.Intent, r.UserInput, r.MemoryContext)
	if err != nil {
		e.log.Error().Err(err).Str("intent", string(r.Intent)).Msg("execute")
		return fmt.Sprintf("Sorry, I couldn't complete that: %v", err)
	}
	return out
}

func (e *Executor) executeSteps(ctx context.Context, r brain.RoutingResult) string {
	e.log.Info().Int("steps", len(r.Steps)).Msg("multi-step plan")

	carried := r.MemoryContext
	results := make([]string, 0, len(r.Steps))
	for i, step := range r.Steps {
		n := i + 1
		intent := e.classifier.Classify(ctx, step)
		e.log.Debug().Int("step", n).Str("intent", string(intent)).Str("input", step).Msg("running step")

		out, err := e.run(ctx, intent, step, carried)
		if err != nil {
			e.log.Warn().Err(err).Int("step", n).Msg("step failed")
			results = append(results, fmt.Sprintf("Step %d failed: %v", n, err))
			continue
		}
		results = append(results, fmt.Sprintf("Step %d: %s", n, out))
		carried += "\nPrevious step result: " + out
	}
	return strings.Join(results, "\n\n")
}

// run executes one request. A failing handler hands the error to chat; run
// only fails when chat fails too.
func (e *Executor) run(ctx context.Context, intent brain.Intent, input, memCtx string) (string, error) {
	h, ok := e.handlers[intent]
	if !ok {
		if h, ok = e.handlers[brain.IntentChat]; !ok {
			return "", fmt.Errorf("%w for intent %q", errNoHandler, intent)
		}
		intent = brain.IntentChat
	}

	out, err := h.Handle(ctx, input, memCtx)
	if err == nil {
		return out, nil
	}
	e.log.Warn().Err(err).Str("intent", string(intent)).Msg("handler failed")

	chat, ok := e.handlers[brain.IntentChat]
	if !ok {
		return "", fmt.Errorf("%s handler: %w", intent, err)
	}
	explain := fmt.Sprintf("I encountered an error trying to %s: %v. The original request was: %s", intent, err, input)
	out, chatErr := chat.Handle(ctx, explain, memCtx)
	if chatErr != nil {
		return "", fmt.Errorf("%s handler: %w (chat fallback: %v)", intent, err, chatErr)
	}
	return out, nil
}
