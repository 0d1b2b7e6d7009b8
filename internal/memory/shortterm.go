package memory

import (
	"strings"
	"sync"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one short-term window entry.
type Turn struct {
	Role    string
	Content string
}

// ShortTerm is the in-memory window of recent turns. It keeps at most
// maxPairs user/assistant pairs and is never persisted.
type ShortTerm struct {
	mu        sync.Mutex
	turns     []Turn
	maxPairs  int
	assistant string
}

func NewShortTerm(maxPairs int, assistantName string) *ShortTerm {
	if maxPairs <= 0 {
		maxPairs = 10
	}
	if assistantName == "" {
		assistantName = "JARVIS"
	}
	return &ShortTerm{maxPairs: maxPairs, assistant: assistantName}
}

func (s *ShortTerm) Add(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
	if max := s.maxPairs * 2; len(s.turns) > max {
		s.turns = append([]Turn(nil), s.turns[len(s.turns)-max:]...)
	}
}

func (s *ShortTerm) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *ShortTerm) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *ShortTerm) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

// Render formats the last five pairs, oldest first, or "" when empty.
func (s *ShortTerm) Render() string {
	turns := s.Turns()
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > 10 {
		turns = turns[len(turns)-10:]
	}
	lines := make([]string, 0, len(turns)+1)
	lines = append(lines, "Recent conversation:")
	for _, t := range turns {
		who := "User"
		if t.Role != RoleUser {
			who = s.assistant
		}
		lines = append(lines, who+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
