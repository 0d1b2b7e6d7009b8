package assistant

import (
	"fmt"
	"os"

	"github.com/stellarlinkco/jarvis/internal/brain"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/executor"
	"github.com/stellarlinkco/jarvis/internal/handlers"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/memory"
)

// Runtime is everything a session needs, built from configuration.
type Runtime struct {
	Config    *config.Config
	LLM       llm.Client
	Engine    *memory.Engine
	Memory    *memory.Manager
	Brain     *brain.Brain
	Assistant *Assistant
}

// Open builds the configured inference backend and the rest of the runtime.
func Open(cfg *config.Config) (*Runtime, error) {
	client, err := llm.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return OpenWith(cfg, client)
}

// OpenWith builds the runtime around an existing inference client.
func OpenWith(cfg *config.Config, client llm.Client) (*Runtime, error) {
	if err := os.MkdirAll(cfg.NotesDir(), 0755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}

	engine, err := memory.NewEngine(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("create memory engine: %w", err)
	}

	mem := memory.NewManager(memory.Options{
		Engine:             engine,
		LLM:                client,
		Privacy:            memory.NewPrivacyGate(cfg.Memory.PrivacyMode),
		MaxShortTerm:       cfg.Memory.MaxShortTerm,
		MaxSemanticResults: cfg.Memory.MaxSemanticResults,
		AssistantName:      cfg.Agent.Name,
		ExportDir:          cfg.ExportDir(),
	})

	b := brain.New(client, cfg)
	exec := executor.New(b.Classifier, Handlers(cfg, b, mem))

	return &Runtime{
		Config: cfg,
		LLM:    client,
		Engine: engine,
		Memory: mem,
		Brain:  b,
		Assistant: New(Options{
			Router:   b,
			Executor: exec,
			Memory:   mem,
			Models:   client,
		}),
	}, nil
}

// Handlers registers one handler per intent.
func Handlers(cfg *config.Config, b *brain.Brain, mem *memory.Manager) map[brain.Intent]handlers.Handler {
	var vision llm.ImageDescriber
	if d, ok := b.LLM().(llm.ImageDescriber); ok {
		vision = d
	}
	return map[brain.Intent]handlers.Handler{
		brain.IntentChat: handlers.NewChatHandler(b),
		brain.IntentCode: handlers.NewCodeHandler(b.LLM(), cfg.PersonaPrompt(), cfg.Agent.Name),
		brain.IntentSearch: handlers.NewSearchHandler(b, handlers.SearchOptions{
			Endpoint:   cfg.Tools.SearchEndpoint,
			MaxResults: cfg.Tools.SearchMaxResults,
		}),
		brain.IntentSystem: handlers.NewSystemHandler(b, handlers.SystemOptions{
			Launcher: handlers.NewExecLauncher(handlers.NewGuard(cfg.Tools.BlockedCommands)),
		}),
		brain.IntentMemory:    handlers.NewMemoryHandler(mem),
		brain.IntentNotes:     handlers.NewNotesHandler(cfg.NotesDir()),
		brain.IntentUtility:   handlers.NewUtilityHandler(),
		brain.IntentVision:    handlers.NewVisionHandler(vision),
		brain.IntentAutonomy:  handlers.NewAutonomyHandler(mem),
		brain.IntentTelephony: handlers.NewTelephonyHandler(),
	}
}

// Close releases the store and any backend resources.
func (r *Runtime) Close() error {
	if c, ok := r.LLM.(interface{ Close() }); ok {
		c.Close()
	}
	if err := r.Engine.Close(); err != nil {
		return fmt.Errorf("close memory engine: %w", err)
	}
	return nil
}
