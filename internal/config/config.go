package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAssistantName        = "JARVIS"
	DefaultProviderType         = "ollama"
	DefaultOllamaHost           = "http://localhost:11434"
	DefaultFastModel            = "qwen2.5:3b"
	DefaultSmartModel           = "llama3.1:8b"
	DefaultEmbedModel           = "nomic-embed-text"
	DefaultVisionModel          = "llava:7b"
	DefaultComplexityThreshold  = 20
	DefaultMaxReflectionRetries = 1
	DefaultTimeoutSeconds       = 60
	DefaultEmbedTimeoutSeconds  = 15
	DefaultMaxShortTerm         = 10
	DefaultMaxSemanticResults   = 3
	DefaultProactiveInterval    = "5m"
	DefaultMorningHour          = 8
	DefaultSearchEndpoint       = "https://html.duckduckgo.com/html/"
	DefaultSearchMaxResults     = 5
	DefaultBufSize              = 100
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// DefaultPersona is the fixed persona prompt prepended to every reasoning call.
const DefaultPersona = `You are JARVIS, a highly capable personal AI assistant.
You are concise, helpful, and intelligent. You think step-by-step for complex problems.
You remember the user's preferences and past conversations.
You never execute dangerous system commands or touch protected files.
When unsure, you ask for clarification rather than guessing.
Adapt your tone: brief and focused in the morning, relaxed and conversational in the evening.`

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Provider  ProviderConfig  `json:"provider"`
	Models    ModelsConfig    `json:"models"`
	Brain     BrainConfig     `json:"brain"`
	Memory    MemoryConfig    `json:"memory"`
	Proactive ProactiveConfig `json:"proactive"`
	Tools     ToolsConfig     `json:"tools"`
	Channels  ChannelsConfig  `json:"channels"`
	Log       LogConfig       `json:"log"`
}

type AgentConfig struct {
	Name      string `json:"name"`
	Persona   string `json:"persona,omitempty"`
	Workspace string `json:"workspace"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "ollama" (default), "anthropic" or "openai"
	Host    string `json:"host,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type ModelsConfig struct {
	Fast   string `json:"fast"`
	Smart  string `json:"smart"`
	Embed  string `json:"embed"`
	Vision string `json:"vision"`
}

type BrainConfig struct {
	ComplexityThreshold  int `json:"complexityThreshold"`
	MaxReflectionRetries int `json:"maxReflectionRetries"`
	TimeoutSeconds       int `json:"timeoutSeconds"`
}

type MemoryConfig struct {
	DBPath              string `json:"dbPath,omitempty"`
	MaxShortTerm        int    `json:"maxShortTerm"`
	MaxSemanticResults  int    `json:"maxSemanticResults"`
	PrivacyMode         bool   `json:"privacyMode"`
	EmbedTimeoutSeconds int    `json:"embedTimeoutSeconds"`
}

type ProactiveConfig struct {
	Enabled     bool   `json:"enabled"`
	Interval    string `json:"interval"`
	MorningHour int    `json:"morningHour"`
}

type ToolsConfig struct {
	NotesDir         string   `json:"notesDir,omitempty"`
	ExportDir        string   `json:"exportDir,omitempty"`
	SearchEndpoint   string   `json:"searchEndpoint,omitempty"`
	SearchMaxResults int      `json:"searchMaxResults"`
	BlockedCommands  []string `json:"blockedCommands,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
	// NotifyChatID receives proactive notices (morning brief, reminders).
	NotifyChatID string `json:"notifyChatId,omitempty"`
	// MediaDir stores downloaded photos; defaults to <data>/media.
	MediaDir string `json:"mediaDir,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			Name:      DefaultAssistantName,
			Workspace: filepath.Join(home, ".jarvis", "workspace"),
		},
		Provider: ProviderConfig{
			Type: DefaultProviderType,
			Host: DefaultOllamaHost,
		},
		Models: ModelsConfig{
			Fast:   DefaultFastModel,
			Smart:  DefaultSmartModel,
			Embed:  DefaultEmbedModel,
			Vision: DefaultVisionModel,
		},
		Brain: BrainConfig{
			ComplexityThreshold:  DefaultComplexityThreshold,
			MaxReflectionRetries: DefaultMaxReflectionRetries,
			TimeoutSeconds:       DefaultTimeoutSeconds,
		},
		Memory: MemoryConfig{
			MaxShortTerm:        DefaultMaxShortTerm,
			MaxSemanticResults:  DefaultMaxSemanticResults,
			EmbedTimeoutSeconds: DefaultEmbedTimeoutSeconds,
		},
		Proactive: ProactiveConfig{
			Enabled:     true,
			Interval:    DefaultProactiveInterval,
			MorningHour: DefaultMorningHour,
		},
		Tools: ToolsConfig{
			SearchEndpoint:   DefaultSearchEndpoint,
			SearchMaxResults: DefaultSearchMaxResults,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".jarvis")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DataDir holds the database and exports.
func DataDir() string {
	return filepath.Join(ConfigDir(), "data")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	loadDotEnv()
	applyEnv(cfg)
	normalize(cfg)

	return cfg, nil
}

// loadDotEnv reads .env from the working directory and the config dir.
// godotenv never overrides variables that are already set.
func loadDotEnv() {
	for _, path := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("JARVIS_PROVIDER"); v != "" {
		cfg.Provider.Type = strings.ToLower(v)
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Provider.Host = v
	}
	if v := os.Getenv("JARVIS_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
		if cfg.Provider.Type == "" || cfg.Provider.Type == DefaultProviderType {
			cfg.Provider.Type = "openai"
		}
	}
	if v := os.Getenv("JARVIS_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("FAST_MODEL"); v != "" {
		cfg.Models.Fast = v
	}
	if v := os.Getenv("SMART_MODEL"); v != "" {
		cfg.Models.Smart = v
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		cfg.Models.Embed = v
	}
	if v := os.Getenv("VISION_MODEL"); v != "" {
		cfg.Models.Vision = v
	}
	if v := os.Getenv("JARVIS_COMPLEXITY_THRESHOLD"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Brain.ComplexityThreshold = parsed
		}
	}
	if v := os.Getenv("JARVIS_MAX_REFLECTION_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Brain.MaxReflectionRetries = parsed
		}
	}
	if v := os.Getenv("JARVIS_TIMEOUT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Brain.TimeoutSeconds = parsed
		}
	}
	if v := os.Getenv("JARVIS_DB_PATH"); v != "" {
		cfg.Memory.DBPath = v
	}
	if v := os.Getenv("JARVIS_PRIVACY_MODE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Memory.PrivacyMode = parsed
		}
	}
	if v := os.Getenv("JARVIS_PROACTIVE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Proactive.Enabled = parsed
		}
	}
	if v := os.Getenv("JARVIS_NOTES_DIR"); v != "" {
		cfg.Tools.NotesDir = v
	}
	if v := os.Getenv("JARVIS_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv("JARVIS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func normalize(cfg *Config) {
	def := DefaultConfig()
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = def.Agent.Name
	}
	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = def.Agent.Workspace
	}
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = DefaultProviderType
	}
	if cfg.Provider.Host == "" {
		cfg.Provider.Host = DefaultOllamaHost
	}
	if cfg.Models.Fast == "" {
		cfg.Models.Fast = DefaultFastModel
	}
	if cfg.Models.Smart == "" {
		cfg.Models.Smart = DefaultSmartModel
	}
	if cfg.Models.Embed == "" {
		cfg.Models.Embed = DefaultEmbedModel
	}
	if cfg.Models.Vision == "" {
		cfg.Models.Vision = DefaultVisionModel
	}
	if cfg.Brain.ComplexityThreshold <= 0 {
		cfg.Brain.ComplexityThreshold = DefaultComplexityThreshold
	}
	if cfg.Brain.MaxReflectionRetries < 0 {
		cfg.Brain.MaxReflectionRetries = 0
	}
	if cfg.Brain.TimeoutSeconds <= 0 {
		cfg.Brain.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Memory.MaxShortTerm <= 0 {
		cfg.Memory.MaxShortTerm = DefaultMaxShortTerm
	}
	if cfg.Memory.MaxSemanticResults <= 0 {
		cfg.Memory.MaxSemanticResults = DefaultMaxSemanticResults
	}
	if cfg.Memory.EmbedTimeoutSeconds <= 0 {
		cfg.Memory.EmbedTimeoutSeconds = DefaultEmbedTimeoutSeconds
	}
	if cfg.Proactive.Interval == "" {
		cfg.Proactive.Interval = DefaultProactiveInterval
	}
	if cfg.Proactive.MorningHour < 0 || cfg.Proactive.MorningHour > 23 {
		cfg.Proactive.MorningHour = DefaultMorningHour
	}
	if cfg.Tools.SearchEndpoint == "" {
		cfg.Tools.SearchEndpoint = DefaultSearchEndpoint
	}
	if cfg.Tools.SearchMaxResults <= 0 {
		cfg.Tools.SearchMaxResults = DefaultSearchMaxResults
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// PersonaPrompt returns the configured persona, or the default one.
func (c *Config) PersonaPrompt() string {
	if strings.TrimSpace(c.Agent.Persona) != "" {
		return c.Agent.Persona
	}
	return DefaultPersona
}

func (c *Config) DBPath() string {
	if p := strings.TrimSpace(c.Memory.DBPath); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "jarvis.db")
}

func (c *Config) NotesDir() string {
	if p := strings.TrimSpace(c.Tools.NotesDir); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "notes")
}

func (c *Config) ExportDir() string {
	if p := strings.TrimSpace(c.Tools.ExportDir); p != "" {
		return p
	}
	return DataDir()
}

func (c *Config) MediaDir() string {
	if p := strings.TrimSpace(c.Channels.Telegram.MediaDir); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "media")
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
