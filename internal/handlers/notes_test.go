package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock advances one minute per call so note names never collide.
func steppingClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func TestNotesLifecycle(t *testing.T) {
	dir := t.TempDir()
	h := NewNotesHandler(dir)
	h.SetClock(steppingClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)))
	ctx := context.Background()

	out, err := h.Handle(ctx, "list notes", "")
	require.NoError(t, err)
	assert.Equal(t, "You don't have any notes yet.", out)

	out, err = h.Handle(ctx, "Take a note: buy Milk and eggs", "")
	require.NoError(t, err)
	assert.Equal(t, "Note saved: note_20260504_100000.md", out)

	data, err := os.ReadFile(filepath.Join(dir, "note_20260504_100000.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Note — 2026-05-04 10:00\n\nbuy Milk and eggs\n", string(data))

	out, _ = h.Handle(ctx, "note that the meeting moved to Friday", "")
	assert.Equal(t, "Note saved: note_20260504_100100.md", out)

	out, _ = h.Handle(ctx, "show my notes", "")
	assert.Equal(t, "📝 Your notes (2 total):\n"+
		"  • note_20260504_100100: Note — 2026-05-04 10:01\n"+
		"  • note_20260504_100000: Note — 2026-05-04 10:00", out)

	out, _ = h.Handle(ctx, "search notes for milk", "")
	assert.True(t, strings.HasPrefix(out, "Found 1 notes matching 'milk':\n  • note_20260504_100000: ..."), out)
	assert.Contains(t, out, "buy Milk and eggs")

	out, _ = h.Handle(ctx, "search notes for llamas", "")
	assert.Equal(t, "No notes found matching 'llamas'.", out)

	out, _ = h.Handle(ctx, "read note 100100", "")
	assert.Equal(t, "📄 note_20260504_100100.md:\n# Note — 2026-05-04 10:01\n\nthe meeting moved to Friday\n", out)

	out, _ = h.Handle(ctx, "delete note 100000", "")
	assert.Equal(t, "Deleted note: note_20260504_100000.md", out)
	_, err = os.Stat(filepath.Join(dir, "note_20260504_100000.md"))
	assert.True(t, os.IsNotExist(err))

	out, _ = h.Handle(ctx, "read note 100000", "")
	assert.Equal(t, "No note found matching '100000'.", out)
}

func TestNotesDefaultSaves(t *testing.T) {
	h := NewNotesHandler(t.TempDir())
	h.SetClock(steppingClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)))

	out, err := h.Handle(context.Background(), "groceries tomorrow", "")
	require.NoError(t, err)
	assert.Equal(t, "Note saved: note_20260102_030405.md", out)

	out, _ = h.Handle(context.Background(), "note", "")
	assert.Equal(t, "I can take notes, search them, or list them. What would you like?", out)
}

func TestNotesListCapsAtTen(t *testing.T) {
	h := NewNotesHandler(t.TempDir())
	h.SetClock(steppingClock(time.Date(2026, 1, 1, 8, 0, 0, 0, time.Local)))
	for i := 0; i < 12; i++ {
		_, err := h.Save("entry")
		require.NoError(t, err)
	}
	out, err := h.Handle(context.Background(), "list notes", "")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "📝 Your notes (12 total):", lines[0])
	assert.Len(t, lines, 12)
	assert.Equal(t, "  ... and 2 more", lines[11])
}

func TestSnippetAroundIsRuneSafe(t *testing.T) {
	content := strings.Repeat("é", 40) + "needle" + strings.Repeat("ü", 100)
	got, ok := snippetAround(content, "NEEDLE")
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("é", 30)+"needle"+strings.Repeat("ü", 70), got)

	_, ok = snippetAround("nothing here", "absent")
	assert.False(t, ok)
}
