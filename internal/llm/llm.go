// Package llm is the boundary to the inference backend. Callers ask for a
// model tier, never a concrete model name; the backend maps tiers to models
// and applies the configured timeouts.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarlinkco/jarvis/internal/config"
)

// Tier is a named inference capability level.
type Tier string

const (
	TierFast  Tier = "fast"
	TierSmart Tier = "smart"
)

// Client is the contract consumed by the classifier, reasoning pipeline,
// planner and fact extraction.
type Client interface {
	Generate(ctx context.Context, tier Tier, prompt, system string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Model(tier Tier) string
}

// Embedder produces a fixed-dimension vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageDescriber is implemented by backends with a vision model.
type ImageDescriber interface {
	Describe(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// Pinger reports backend reachability and the models it serves.
type Pinger interface {
	Ping(ctx context.Context) ([]string, error)
}

// New builds the backend selected by cfg.Provider.Type.
func New(cfg *config.Config) (Client, error) {
	ollama, err := NewOllamaClient(cfg)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider.Type)) {
	case "", "ollama":
		return ollama, nil
	case "anthropic", "openai":
		return NewAgentClient(cfg, ollama, DefaultRuntimeFactory)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Provider.Type)
	}
}
