package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const listLimit = 10

var savePrefixes = []string{"take a note:", "take a note", "save a note:", "save a note", "note that", "note:"}

// NotesHandler keeps timestamped markdown notes in a directory.
type NotesHandler struct {
	dir    string
	now    func() time.Time
	routes table
}

func NewNotesHandler(dir string) *NotesHandler {
	h := &NotesHandler{dir: dir, now: time.Now}
	h.routes = table{
		{name: "save", keywords: []string{"take a note", "save a note", "note that", "note:"}, prefix: true, do: h.save},
		{name: "list", keywords: []string{"my notes", "show notes", "list notes", "all notes"}, do: h.list},
		{name: "search", keywords: []string{"search notes", "find note"}, do: h.search},
		{name: "read", keywords: []string{"read note", "open note"}, do: h.read},
		{name: "delete", keywords: []string{"delete note", "remove note"}, do: h.delete},
	}
	return h
}

// SetClock overrides the time source (tests).
func (h *NotesHandler) SetClock(now func() time.Time) { h.now = now }

func (h *NotesHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.saveDefault)
}

func (h *NotesHandler) save(_ context.Context, req request) (string, error) {
	content := strings.TrimSpace(req.input)
	for _, p := range savePrefixes {
		if strings.HasPrefix(req.lower, p) {
			content = strings.TrimSpace(content[len(p):])
			break
		}
	}
	if content == "" {
		return "What should I note down?", nil
	}
	return h.Save(content)
}

func (h *NotesHandler) saveDefault(_ context.Context, req request) (string, error) {
	content := strings.TrimSpace(req.input)
	for _, p := range []string{"take a note", "save a note", "note that", "note"} {
		if strings.HasPrefix(req.lower, p) {
			content = strings.TrimSpace(content[len(p):])
			break
		}
	}
	if content == "" {
		return "I can take notes, search them, or list them. What would you like?", nil
	}
	return h.Save(content)
}

// Save writes content to note_YYYYMMDD_HHMMSS.md.
func (h *NotesHandler) Save(content string) (string, error) {
	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return "", fmt.Errorf("create notes dir: %w", err)
	}
	now := h.now()
	name := "note_" + now.Format("20060102_150405") + ".md"
	body := fmt.Sprintf("# Note — %s\n\n%s\n", now.Format("2006-01-02 15:04"), content)
	if err := os.WriteFile(filepath.Join(h.dir, name), []byte(body), 0644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return "Note saved: " + name, nil
}

func (h *NotesHandler) list(_ context.Context, _ request) (string, error) {
	names, err := h.noteNames()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "You don't have any notes yet.", nil
	}

	lines := []string{fmt.Sprintf("📝 Your notes (%d total):", len(names))}
	for i, name := range names {
		if i == listLimit {
			break
		}
		stem := strings.TrimSuffix(name, ".md")
		data, err := os.ReadFile(filepath.Join(h.dir, name))
		if err != nil {
			lines = append(lines, "  • "+stem)
			continue
		}
		first, _, _ := strings.Cut(string(data), "\n")
		first = strings.TrimSpace(strings.TrimLeft(first, "# "))
		lines = append(lines, fmt.Sprintf("  • %s: %s", stem, first))
	}
	if len(names) > listLimit {
		lines = append(lines, fmt.Sprintf("  ... and %d more", len(names)-listLimit))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *NotesHandler) search(_ context.Context, req request) (string, error) {
	query := stripWords(req.lower, "search notes", "find notes", "find note")
	query = strings.TrimSpace(strings.TrimPrefix(query, "for "))
	if query == "" {
		return "What should I search for in your notes?", nil
	}

	names, err := h.noteNames()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "No notes to search.", nil
	}

	var matches []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(h.dir, name))
		if err != nil {
			continue
		}
		if snippet, ok := snippetAround(string(data), query); ok {
			matches = append(matches, fmt.Sprintf("  • %s: ...%s...", strings.TrimSuffix(name, ".md"), snippet))
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No notes found matching '%s'.", query), nil
	}

	total := len(matches)
	if len(matches) > listLimit {
		matches = matches[:listLimit]
	}
	lines := append([]string{fmt.Sprintf("Found %d notes matching '%s':", total, query)}, matches...)
	return strings.Join(lines, "\n"), nil
}

func (h *NotesHandler) read(_ context.Context, req request) (string, error) {
	id := stripWords(req.lower, "read note", "open note")
	if id == "" {
		return "Which note should I read? Provide the note name or part of it.", nil
	}
	name, ok, err := h.find(id)
	if err != nil || !ok {
		return fmt.Sprintf("No note found matching '%s'.", id), err
	}
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return fmt.Sprintf("📄 %s:\n%s", name, data), nil
}

func (h *NotesHandler) delete(_ context.Context, req request) (string, error) {
	id := stripWords(req.lower, "delete note", "remove note")
	if id == "" {
		return "Which note should I delete? Provide the note name or part of it.", nil
	}
	name, ok, err := h.find(id)
	if err != nil || !ok {
		return fmt.Sprintf("No note found matching '%s'.", id), err
	}
	if err := os.Remove(filepath.Join(h.dir, name)); err != nil {
		return "", fmt.Errorf("delete note: %w", err)
	}
	return "Deleted note: " + name, nil
}

// noteNames lists note files newest first.
func (h *NotesHandler) noteNames() ([]string, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list notes: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "note_") && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// find returns the newest note whose file name contains id.
func (h *NotesHandler) find(id string) (string, bool, error) {
	names, err := h.noteNames()
	if err != nil {
		return "", false, err
	}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), id) {
			return name, true, nil
		}
	}
	return "", false, nil
}

// snippetAround returns up to 30 runes before and 70 after the first
// case-insensitive match of query, flattened to one line.
func snippetAround(content, query string) (string, bool) {
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))
	q := []rune(strings.ToLower(query))
	idx := indexRunes(lower, q)
	if idx < 0 {
		return "", false
	}
	start := max(0, idx-30)
	end := min(len(runes), idx+len(q)+70)
	return strings.TrimSpace(strings.ReplaceAll(string(runes[start:end]), "\n", " ")), true
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
