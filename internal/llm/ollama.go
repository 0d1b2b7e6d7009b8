package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

// OllamaClient talks to a local Ollama server. Every call is non-streaming
// and bounded by a per-call timeout.
type OllamaClient struct {
	api          *ollama.Client
	models       map[Tier]string
	embedModel   string
	visionModel  string
	timeout      time.Duration
	embedTimeout time.Duration
	log          zerolog.Logger
}

func NewOllamaClient(cfg *config.Config) (*OllamaClient, error) {
	return NewOllamaClientWithHTTP(cfg, &http.Client{})
}

// NewOllamaClientWithHTTP allows injecting the HTTP client (tests).
func NewOllamaClientWithHTTP(cfg *config.Config, httpClient *http.Client) (*OllamaClient, error) {
	host := strings.TrimSpace(cfg.Provider.Host)
	if host == "" {
		host = config.DefaultOllamaHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}

	return &OllamaClient{
		api: ollama.NewClient(base, httpClient),
		models: map[Tier]string{
			TierFast:  cfg.Models.Fast,
			TierSmart: cfg.Models.Smart,
		},
		embedModel:   cfg.Models.Embed,
		visionModel:  cfg.Models.Vision,
		timeout:      time.Duration(cfg.Brain.TimeoutSeconds) * time.Second,
		embedTimeout: time.Duration(cfg.Memory.EmbedTimeoutSeconds) * time.Second,
		log:          logging.For("llm"),
	}, nil
}

func (c *OllamaClient) Model(tier Tier) string {
	if m, ok := c.models[tier]; ok && m != "" {
		return m
	}
	return c.models[TierFast]
}

func (c *OllamaClient) Generate(ctx context.Context, tier Tier, prompt, system string) (string, error) {
	return c.generate(ctx, c.Model(tier), prompt, system, nil)
}

// Describe runs prompt against the vision model with the given images.
func (c *OllamaClient) Describe(ctx context.Context, prompt string, images [][]byte) (string, error) {
	data := make([]ollama.ImageData, 0, len(images))
	for _, img := range images {
		data = append(data, ollama.ImageData(img))
	}
	return c.generate(ctx, c.visionModel, prompt, "", data)
}

func (c *OllamaClient) generate(ctx context.Context, model, prompt, system string, images []ollama.ImageData) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &ollama.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Stream: &stream,
		Images: images,
	}

	start := time.Now()
	var sb strings.Builder
	err := c.api.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("model", model).Msg("generate failed")
		return "", wrapError("generate", model, err)
	}

	out := strings.TrimSpace(sb.String())
	c.log.Debug().Str("model", model).Dur("took", time.Since(start)).Int("chars", len(out)).Msg("generate")
	if out == "" {
		return "", &Error{Op: "generate", Model: model, Err: ErrEmptyResponse}
	}
	return out, nil
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Op: "embed", Model: c.embedModel, Err: fmt.Errorf("empty text")}
	}

	ctx, cancel := withTimeout(ctx, c.embedTimeout)
	defer cancel()

	resp, err := c.api.Embed(ctx, &ollama.EmbedRequest{
		Model: c.embedModel,
		Input: text,
	})
	if err != nil {
		return nil, wrapError("embed", c.embedModel, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, &Error{Op: "embed", Model: c.embedModel, Err: ErrEmptyResponse}
	}
	return resp.Embeddings[0], nil
}

// Ping lists the models the server has pulled.
func (c *OllamaClient) Ping(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, wrapError("list", "", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
