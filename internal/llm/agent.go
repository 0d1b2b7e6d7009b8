package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	agentapi "github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const agentMaxTokens = 4096

// Runtime is the slice of the agentsdk runtime the client needs (allows
// mocking in tests).
type Runtime interface {
	Run(ctx context.Context, req agentapi.Request) (*agentapi.Response, error)
	Close()
}

type runtimeWrapper struct {
	rt *agentapi.Runtime
}

func (r *runtimeWrapper) Run(ctx context.Context, req agentapi.Request) (*agentapi.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeWrapper) Close() {
	r.rt.Close()
}

// RuntimeFactory creates a runtime bound to one model name.
type RuntimeFactory func(cfg *config.Config, modelName string) (Runtime, error)

var newRuntime = agentapi.New

// DefaultRuntimeFactory builds an agentsdk-go runtime for a hosted provider.
func DefaultRuntimeFactory(cfg *config.Config, modelName string) (Runtime, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'jarvis onboard' or set JARVIS_API_KEY / ANTHROPIC_API_KEY")
	}

	var provider agentapi.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: modelName,
			MaxTokens: agentMaxTokens,
		}
	default:
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: modelName,
			MaxTokens: agentMaxTokens,
		}
	}

	rt, err := newRuntime(context.Background(), agentapi.Options{
		ProjectRoot:   cfg.Agent.Workspace,
		ModelFactory:  provider,
		MaxIterations: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &runtimeWrapper{rt: rt}, nil
}

// AgentClient serves generation through a hosted provider and delegates
// embeddings to a local embedder.
type AgentClient struct {
	cfg      *config.Config
	factory  RuntimeFactory
	embedder Embedder
	models   map[Tier]string
	timeout  time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	runtimes map[Tier]Runtime
}

func NewAgentClient(cfg *config.Config, embedder Embedder, factory RuntimeFactory) (*AgentClient, error) {
	if factory == nil {
		factory = DefaultRuntimeFactory
	}
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set for provider %q", cfg.Provider.Type)
	}
	return &AgentClient{
		cfg:      cfg,
		factory:  factory,
		embedder: embedder,
		models: map[Tier]string{
			TierFast:  cfg.Models.Fast,
			TierSmart: cfg.Models.Smart,
		},
		timeout:  time.Duration(cfg.Brain.TimeoutSeconds) * time.Second,
		log:      logging.For("llm"),
		runtimes: make(map[Tier]Runtime),
	}, nil
}

func (c *AgentClient) Model(tier Tier) string {
	if m, ok := c.models[tier]; ok && m != "" {
		return m
	}
	return c.models[TierFast]
}

func (c *AgentClient) runtime(tier Tier) (Runtime, error) {
	if tier != TierSmart {
		tier = TierFast
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if rt, ok := c.runtimes[tier]; ok {
		return rt, nil
	}
	rt, err := c.factory(c.cfg, c.Model(tier))
	if err != nil {
		return nil, err
	}
	c.runtimes[tier] = rt
	return rt, nil
}

func (c *AgentClient) Generate(ctx context.Context, tier Tier, prompt, system string) (string, error) {
	modelName := c.Model(tier)
	rt, err := c.runtime(tier)
	if err != nil {
		return "", &Error{Op: "generate", Model: modelName, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if system != "" {
		prompt = system + "\n\n" + prompt
	}
	resp, err := rt.Run(ctx, agentapi.Request{
		Prompt:    prompt,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		c.log.Warn().Err(err).Str("model", modelName).Msg("agent run failed")
		return "", wrapError("generate", modelName, err)
	}
	if resp == nil || resp.Result == nil || strings.TrimSpace(resp.Result.Output) == "" {
		return "", &Error{Op: "generate", Model: modelName, Err: ErrEmptyResponse}
	}
	return strings.TrimSpace(resp.Result.Output), nil
}

func (c *AgentClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, &Error{Op: "embed", Err: ErrUnavailable}
	}
	return c.embedder.Embed(ctx, text)
}

// Ping reports the configured hosted models; the embedder is probed when it
// can answer.
func (c *AgentClient) Ping(ctx context.Context) ([]string, error) {
	names := []string{c.Model(TierFast), c.Model(TierSmart)}
	if p, ok := c.embedder.(Pinger); ok {
		local, err := p.Ping(ctx)
		if err != nil {
			return names, err
		}
		names = append(names, local...)
	}
	return names, nil
}

func (c *AgentClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tier, rt := range c.runtimes {
		rt.Close()
		delete(c.runtimes, tier)
	}
}
