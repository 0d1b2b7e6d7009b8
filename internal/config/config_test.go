package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"JARVIS_PROVIDER", "OLLAMA_HOST", "JARVIS_API_KEY", "ANTHROPIC_API_KEY",
		"OPENAI_API_KEY", "JARVIS_BASE_URL", "FAST_MODEL", "SMART_MODEL",
		"EMBED_MODEL", "VISION_MODEL", "JARVIS_COMPLEXITY_THRESHOLD",
		"JARVIS_MAX_REFLECTION_RETRIES", "JARVIS_TIMEOUT", "JARVIS_DB_PATH",
		"JARVIS_PRIVACY_MODE", "JARVIS_PROACTIVE", "JARVIS_NOTES_DIR",
		"JARVIS_TELEGRAM_TOKEN", "JARVIS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Agent.Name != DefaultAssistantName {
		t.Errorf("name = %q, want %q", cfg.Agent.Name, DefaultAssistantName)
	}
	if cfg.Provider.Type != DefaultProviderType {
		t.Errorf("provider = %q, want %q", cfg.Provider.Type, DefaultProviderType)
	}
	if cfg.Models.Fast != DefaultFastModel || cfg.Models.Smart != DefaultSmartModel {
		t.Errorf("models = %+v", cfg.Models)
	}
	if cfg.Brain.ComplexityThreshold != 20 {
		t.Errorf("threshold = %d, want 20", cfg.Brain.ComplexityThreshold)
	}
	if cfg.Brain.MaxReflectionRetries != 1 {
		t.Errorf("maxReflectionRetries = %d, want 1", cfg.Brain.MaxReflectionRetries)
	}
	if cfg.Memory.MaxShortTerm != 10 || cfg.Memory.MaxSemanticResults != 3 {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	if cfg.Memory.PrivacyMode {
		t.Error("privacy mode should be off by default")
	}
	if cfg.Proactive.Interval != "5m" || cfg.Proactive.MorningHour != 8 {
		t.Errorf("proactive = %+v", cfg.Proactive)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Models.Fast != DefaultFastModel {
		t.Errorf("expected default fast model %q, got %q", DefaultFastModel, cfg.Models.Fast)
	}
	if cfg.DBPath() != filepath.Join(DataDir(), "jarvis.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".jarvis")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	testCfg := map[string]any{
		"models": map[string]any{
			"fast":  "phi3:mini",
			"smart": "qwen2.5:14b",
		},
		"brain": map[string]any{
			"complexityThreshold":  12,
			"maxReflectionRetries": 0,
		},
		"memory": map[string]any{
			"dbPath": "/tmp/custom.db",
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Models.Fast != "phi3:mini" || cfg.Models.Smart != "qwen2.5:14b" {
		t.Errorf("models = %+v", cfg.Models)
	}
	if cfg.Models.Embed != DefaultEmbedModel {
		t.Errorf("embed model should keep default, got %q", cfg.Models.Embed)
	}
	if cfg.Brain.ComplexityThreshold != 12 {
		t.Errorf("threshold = %d, want 12", cfg.Brain.ComplexityThreshold)
	}
	if cfg.Brain.MaxReflectionRetries != 0 {
		t.Errorf("maxReflectionRetries = %d, want 0", cfg.Brain.MaxReflectionRetries)
	}
	if cfg.DBPath() != "/tmp/custom.db" {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".jarvis")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{not json"), 0644)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("FAST_MODEL", "tiny")
	t.Setenv("SMART_MODEL", "huge")
	t.Setenv("JARVIS_COMPLEXITY_THRESHOLD", "30")
	t.Setenv("JARVIS_PRIVACY_MODE", "true")
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "tg-token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.Host != "http://gpu-box:11434" {
		t.Errorf("host = %q", cfg.Provider.Host)
	}
	if cfg.Models.Fast != "tiny" || cfg.Models.Smart != "huge" {
		t.Errorf("models = %+v", cfg.Models)
	}
	if cfg.Brain.ComplexityThreshold != 30 {
		t.Errorf("threshold = %d", cfg.Brain.ComplexityThreshold)
	}
	if !cfg.Memory.PrivacyMode {
		t.Error("privacy mode should be enabled from env")
	}
	if cfg.Channels.Telegram.Token != "tg-token" {
		t.Errorf("telegram token = %q", cfg.Channels.Telegram.Token)
	}
}

func TestLoadConfig_OpenAIKeySwitchesProvider(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.Type != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "sk-openai" {
		t.Errorf("apiKey = %q", cfg.Provider.APIKey)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)
	os.Unsetenv("EMBED_MODEL")

	cfgDir := filepath.Join(tmpDir, ".jarvis")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, ".env"), []byte("EMBED_MODEL=mxbai-embed-large\n"), 0644)
	t.Cleanup(func() { os.Unsetenv("EMBED_MODEL") })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Models.Embed != "mxbai-embed-large" {
		t.Errorf("embed = %q, want mxbai-embed-large", cfg.Models.Embed)
	}
}

func TestSaveConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Models.Smart = "saved-model"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Models.Smart != "saved-model" {
		t.Errorf("smart = %q, want saved-model", loaded.Models.Smart)
	}
}

func TestPersonaPrompt(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PersonaPrompt() != DefaultPersona {
		t.Error("expected default persona")
	}
	cfg.Agent.Persona = "You are Friday."
	if cfg.PersonaPrompt() != "You are Friday." {
		t.Errorf("persona = %q", cfg.PersonaPrompt())
	}
}
