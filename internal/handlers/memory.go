package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/jarvis/internal/memory"
)

// MemoryStore is the part of memory.Manager the memory handler drives.
type MemoryStore interface {
	Privacy() *memory.PrivacyGate
	Export(path string) (string, error)
	Wipe(ctx context.Context, confirm bool) (string, error)
	ForgetAbout(topic string) (string, error)
	Analytics() (memory.Analytics, error)
	Facts(limit int) ([]memory.Fact, error)
	RecentConversations(limit int) ([]memory.Conversation, error)
	SearchEpisodes(ctx context.Context, query string, n int) []string
}

var rememberPhrases = []string{
	"remember that", "my name is", "i prefer", "i like", "i hate",
	"i work at", "i live in", "call me",
}

// MemoryHandler manages what the assistant remembers: privacy mode, export,
// wipe, targeted forgetting, analytics, the user profile and recall.
type MemoryHandler struct {
	mem    MemoryStore
	routes table
}

func NewMemoryHandler(mem MemoryStore) *MemoryHandler {
	h := &MemoryHandler{mem: mem}
	h.routes = table{
		{name: "privacy", keywords: []string{"privacy mode", "go private"}, do: h.privacy},
		{name: "export", keywords: []string{"export"}, do: h.export},
		{name: "wipe", keywords: []string{"wipe memory", "wipe all", "delete all memories"}, do: h.wipe},
		{name: "forget", keywords: []string{"forget"}, do: h.forget},
		{name: "analytics", keywords: []string{"analytics", "statistics", "stats"}, do: h.analytics},
		{name: "profile", keywords: []string{"know about me", "my profile", "my facts"}, do: h.profile},
		{name: "recall", keywords: []string{"what did i say", "what did we", "do you remember"}, do: h.recall},
		{name: "remember", keywords: rememberPhrases, do: h.remember},
	}
	return h
}

func (h *MemoryHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.search)
}

func (h *MemoryHandler) privacy(_ context.Context, req request) (string, error) {
	if containsAny(req.lower, "off", "disable", "stop") {
		h.mem.Privacy().Set(false)
		return "Privacy mode disabled. I'll remember our conversations again.", nil
	}
	h.mem.Privacy().Set(true)
	return "Privacy mode enabled. I won't store any new memories until you turn it off.", nil
}

func (h *MemoryHandler) export(_ context.Context, _ request) (string, error) {
	return h.mem.Export("")
}

func (h *MemoryHandler) wipe(ctx context.Context, req request) (string, error) {
	return h.mem.Wipe(ctx, strings.Contains(req.lower, "confirm"))
}

func (h *MemoryHandler) forget(_ context.Context, req request) (string, error) {
	topic := stripWords(req.lower, "forget about", "forget")
	if topic == "" {
		return "What should I forget? Say 'forget about [topic]'.", nil
	}
	return h.mem.ForgetAbout(topic)
}

func (h *MemoryHandler) analytics(_ context.Context, _ request) (string, error) {
	a, err := h.mem.Analytics()
	if err != nil {
		return "", fmt.Errorf("load analytics: %w", err)
	}

	lines := []string{
		"📊 Conversation Analytics:",
		fmt.Sprintf("  Total conversations: %d", a.TotalConversations),
		fmt.Sprintf("  Recent sessions: %d", a.RecentSessions),
	}
	if len(a.ByIntent) > 0 {
		lines = append(lines, "  By type:")
		for _, kv := range sortedCounts(a.ByIntent) {
			lines = append(lines, fmt.Sprintf("    • %s: %d", kv.key, kv.n))
		}
	}
	if len(a.MostActiveHours) > 0 {
		hours := make(map[string]int, len(a.MostActiveHours))
		for hour, n := range a.MostActiveHours {
			hours[fmt.Sprintf("%02d", hour)] = n
		}
		lines = append(lines, "  Most active hours:")
		sorted := sortedCounts(hours)
		if len(sorted) > 3 {
			sorted = sorted[:3]
		}
		for _, kv := range sorted {
			lines = append(lines, fmt.Sprintf("    • %s:00 (%d conversations)", kv.key, kv.n))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (h *MemoryHandler) profile(_ context.Context, _ request) (string, error) {
	facts, err := h.mem.Facts(0)
	if err != nil {
		return "", fmt.Errorf("load facts: %w", err)
	}
	if len(facts) == 0 {
		return "I don't have any stored facts about you yet. Tell me about yourself!", nil
	}
	lines := []string{"Here's what I know about you:"}
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("  • [%s] %s: %s", f.Category, f.Key, f.Value))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *MemoryHandler) recall(ctx context.Context, req request) (string, error) {
	query := stripWords(req.lower, "what did i say about", "what did we talk about", "do you remember")
	query = strings.TrimSpace(strings.TrimRight(query, "?"))
	if query == "" || query == "what did i say" || query == "what did we" {
		recent, err := h.mem.RecentConversations(5)
		if err != nil {
			return "", fmt.Errorf("load conversations: %w", err)
		}
		if len(recent) == 0 {
			return "We haven't had any conversations yet.", nil
		}
		lines := []string{"Recent conversations:"}
		for _, c := range recent {
			lines = append(lines, fmt.Sprintf("  [%s] You: %s", c.Timestamp, truncate(c.UserInput, 80)))
			lines = append(lines, fmt.Sprintf("           Me: %s", truncate(c.Response, 80)))
		}
		return strings.Join(lines, "\n"), nil
	}

	if episodes := h.mem.SearchEpisodes(ctx, query, 3); len(episodes) > 0 {
		return "Here's what I found:\n\n" + strings.Join(episodes, "\n---\n"), nil
	}
	return fmt.Sprintf("I don't remember any conversations about '%s'.", query), nil
}

// remember only acknowledges; extraction runs when the exchange is recorded.
func (h *MemoryHandler) remember(_ context.Context, _ request) (string, error) {
	return "Got it, I'll remember that.", nil
}

func (h *MemoryHandler) search(ctx context.Context, req request) (string, error) {
	if episodes := h.mem.SearchEpisodes(ctx, req.input, 3); len(episodes) > 0 {
		return "Here's what I found in my memory:\n\n" + strings.Join(episodes, "\n---\n"), nil
	}
	return "I don't have any relevant memories about that yet.", nil
}

type keyCount struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, n := range m {
		out = append(out, keyCount{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}
