package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReminder(t *testing.T) {
	now := time.Date(2026, 6, 10, 14, 0, 0, 0, time.Local)
	cases := []struct {
		input string
		at    time.Time
		msg   string
	}{
		{"remind me to stretch in 30 minutes", now.Add(30 * time.Minute), "stretch"},
		{"Remind me to call mom in an hour.", now.Add(time.Hour), "call mom"},
		{"in 45 sec remind me to check the oven", now.Add(45 * time.Second), "check the oven"},
		{"remind me about the standup at 3:15 pm", time.Date(2026, 6, 10, 15, 15, 0, 0, time.Local), "the standup"},
		{"remind me to sleep at 9", time.Date(2026, 6, 11, 9, 0, 0, 0, time.Local), "sleep"},
		{"remind me to eat at 12am", time.Date(2026, 6, 11, 0, 0, 0, 0, time.Local), "eat"},
	}
	for _, c := range cases {
		at, msg, ok := ParseReminder(c.input, now)
		require.True(t, ok, c.input)
		assert.Equal(t, c.at, at, c.input)
		assert.Equal(t, c.msg, msg, c.input)
	}

	_, _, ok := ParseReminder("remind me to stretch", now)
	assert.False(t, ok)
	_, _, ok = ParseReminder("remind me at 25:00", now)
	assert.False(t, ok)
}

func TestParseReminderRejectsHugeDelays(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for _, input := range []string{
		"remind me to stretch in 9999999999 hours",
		"remind me to stretch in 99999999999999999999 minutes",
		"remind me to stretch in 9000 hours",
	} {
		_, _, ok := ParseReminder(input, now)
		assert.False(t, ok, input)
	}

	at, msg, ok := ParseReminder("remind me to renew the lease in 8000 hours", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(8000*time.Hour), at)
	assert.Equal(t, "renew the lease", msg)

	h := NewAutonomyHandler(newTestManager(t))
	h.SetClock(func() time.Time { return now })
	out, err := h.Handle(context.Background(), "remind me to stretch in 9999999999 hours", "")
	require.NoError(t, err)
	assert.Equal(t, "When should I remind you? Say 'remind me to ... in 10 minutes' or 'at 15:30'.", out)
}

func TestAutonomyHandlerReminders(t *testing.T) {
	m := newTestManager(t)
	h := NewAutonomyHandler(m)
	now := time.Date(2026, 6, 10, 23, 30, 0, 0, time.Local)
	h.SetClock(func() time.Time { return now })
	ctx := context.Background()

	out, err := h.Handle(ctx, "show reminders", "")
	require.NoError(t, err)
	assert.Equal(t, "You have no pending reminders.", out)

	out, err = h.Handle(ctx, "remind me to stretch in 10 minutes", "")
	require.NoError(t, err)
	assert.Equal(t, "Reminder set at 23:40: stretch", out)

	out, _ = h.Handle(ctx, "remind me to run at 7:00", "")
	assert.Equal(t, "Reminder set tomorrow at 07:00: run", out)

	out, _ = h.Handle(ctx, "set a reminder", "")
	assert.Equal(t, "When should I remind you? Say 'remind me to ... in 10 minutes' or 'at 15:30'.", out)

	out, _ = h.Handle(ctx, "remind me in 5 minutes", "")
	assert.Equal(t, "What should I remind you about?", out)

	out, _ = h.Handle(ctx, "list reminders", "")
	assert.True(t, strings.HasPrefix(out, "⏰ Pending reminders (2):\n"), out)
	assert.Contains(t, out, ": stretch")
	assert.Contains(t, out, ": run")

	due, err := m.DueReminders(now.Add(11 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "stretch", due[0].Message)
}

func TestAutonomyHandlerBriefAndSuggest(t *testing.T) {
	m := newTestManager(t)
	h := NewAutonomyHandler(m)
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.Local)
	h.SetClock(func() time.Time { return now })
	ctx := context.Background()

	out, _ := h.Handle(ctx, "give me my brief", "")
	assert.Equal(t, "Nothing to report yet. Talk to me a bit more and I'll learn your routine.", out)
	out, _ = h.Handle(ctx, "suggest something", "")
	assert.Equal(t, "I don't know your routine yet. Once we've worked together a while I'll suggest what to do next.", out)

	record(t, m, "write a sort function", "done", "code", now.Add(-24*time.Hour))
	record(t, m, "fix my build", "done", "code", now.Add(-24*time.Hour+time.Minute))

	out, _ = h.Handle(ctx, "suggest something", "")
	assert.Equal(t, "Around this time you usually work on code tasks (2 times so far). Want to start there?", out)

	out, _ = h.Handle(ctx, "what's on the agenda", "")
	assert.True(t, strings.HasPrefix(out, "Good morning!"), out)

	out, _ = h.Handle(ctx, "autonomy status", "")
	assert.True(t, strings.HasPrefix(out, "Autonomy engine is active."), out)
}
