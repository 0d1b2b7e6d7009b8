package memory

import (
	"context"
	"strings"
)

const maxContextFacts = 15

// Context composes the prompt context for query from the fact profile, the
// short-term window and the nearest past episodes. Empty sections are
// omitted; failures in any layer only drop that layer.
func (m *Manager) Context(ctx context.Context, query string) string {
	var parts []string

	facts, err := m.engine.Facts(maxContextFacts)
	if err != nil {
		m.log.Warn().Err(err).Msg("load facts for context")
	}
	if len(facts) > 0 {
		lines := make([]string, 0, len(facts))
		for _, f := range facts {
			lines = append(lines, "  • "+f.Key+": "+f.Value)
		}
		parts = append(parts, "Known facts about user:\n"+strings.Join(lines, "\n"))
	}

	if recent := m.short.Render(); recent != "" {
		parts = append(parts, recent)
	}

	episodes := m.SearchEpisodes(ctx, query, m.maxSemantic)
	if len(episodes) > 3 {
		episodes = episodes[:3]
	}
	if len(episodes) > 0 {
		parts = append(parts, "Relevant past conversations:\n"+strings.Join(episodes, "\n---\n"))
	}

	return strings.Join(parts, "\n\n")
}
