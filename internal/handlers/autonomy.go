package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/jarvis/internal/memory"
	"github.com/stellarlinkco/jarvis/internal/proactive"
)

// AutonomyStore is what the autonomy handler reads and writes.
type AutonomyStore interface {
	proactive.Source
	AddReminder(message string, at time.Time) (int64, error)
	PendingReminders() ([]memory.Reminder, error)
	PatternTotals(limit int) ([]memory.PatternCount, error)
}

// maxReminderDelay bounds relative reminders ("in N hours").
const maxReminderDelay = 366 * 24 * time.Hour

var (
	relativeTime = regexp.MustCompile(`(?i)\bin\s+(\d+|an?|one)\s*(seconds?|secs?|minutes?|mins?|hours?|hrs?|h|m)\b`)
	clockTime    = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	remindLead   = regexp.MustCompile(`(?i)^.*?\bremind\s+me\s+(?:to\s+|about\s+|that\s+)?`)
)

// AutonomyHandler sets reminders, gives the daily brief on demand and
// suggests tasks from usage patterns.
type AutonomyHandler struct {
	store  AutonomyStore
	now    func() time.Time
	routes table
}

func NewAutonomyHandler(store AutonomyStore) *AutonomyHandler {
	h := &AutonomyHandler{store: store, now: time.Now}
	h.routes = table{
		{name: "list", keywords: []string{"my reminders", "list reminders", "show reminders", "pending reminders", "what reminders"}, do: h.list},
		{name: "remind", keywords: []string{"remind", "reminder"}, do: h.remind},
		{name: "brief", keywords: []string{"brief", "agenda"}, do: h.brief},
		{name: "suggest", keywords: []string{"suggest", "what should i", "routine", "habit"}, do: h.suggest},
	}
	return h
}

// SetClock overrides the time source (tests).
func (h *AutonomyHandler) SetClock(now func() time.Time) { h.now = now }

func (h *AutonomyHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.status)
}

func (h *AutonomyHandler) status(context.Context, request) (string, error) {
	return "Autonomy engine is active. I can set reminders ('remind me to stretch in 30 minutes'), give you a daily brief, or suggest what to do next.", nil
}

func (h *AutonomyHandler) remind(_ context.Context, req request) (string, error) {
	now := h.now()
	at, rest, ok := ParseReminder(req.input, now)
	if !ok {
		return "When should I remind you? Say 'remind me to ... in 10 minutes' or 'at 15:30'.", nil
	}
	if rest == "" {
		return "What should I remind you about?", nil
	}
	if _, err := h.store.AddReminder(rest, at); err != nil {
		return "", fmt.Errorf("save reminder: %w", err)
	}
	when := at.Format("15:04")
	if at.YearDay() != now.YearDay() || at.Year() != now.Year() {
		when = "tomorrow at " + when
	} else {
		when = "at " + when
	}
	return fmt.Sprintf("Reminder set %s: %s", when, rest), nil
}

// ParseReminder reads the trigger time ("in N minutes|hours" or "at HH:MM")
// and the reminder text from input. Clock times already past today roll over
// to tomorrow.
func ParseReminder(input string, now time.Time) (at time.Time, message string, ok bool) {
	text := strings.TrimSpace(input)

	if m := relativeTime.FindStringSubmatchIndex(text); m != nil {
		n := 1
		if count := text[m[2]:m[3]]; count[0] >= '0' && count[0] <= '9' {
			v, err := strconv.Atoi(count)
			if err != nil {
				return time.Time{}, "", false
			}
			n = v
		}
		unit := time.Minute
		switch u := strings.ToLower(text[m[4]:m[5]]); {
		case strings.HasPrefix(u, "s"):
			unit = time.Second
		case strings.HasPrefix(u, "h"):
			unit = time.Hour
		}
		if int64(n) > int64(maxReminderDelay/unit) {
			return time.Time{}, "", false
		}
		at = now.Add(time.Duration(n) * unit)
		text = text[:m[0]] + text[m[1]:]
		ok = true
	} else if m := clockTime.FindStringSubmatchIndex(text); m != nil {
		hour, _ := strconv.Atoi(text[m[2]:m[3]])
		minute := 0
		if m[4] >= 0 {
			minute, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		if m[6] >= 0 {
			switch strings.ToLower(text[m[6]:m[7]]) {
			case "pm":
				if hour < 12 {
					hour += 12
				}
			case "am":
				if hour == 12 {
					hour = 0
				}
			}
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, "", false
		}
		at = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		text = text[:m[0]] + text[m[1]:]
		ok = true
	}
	if !ok {
		return time.Time{}, "", false
	}

	message = remindLead.ReplaceAllString(text, "")
	message = strings.Join(strings.Fields(message), " ")
	message = strings.TrimRight(message, ".!?, ")
	return at, message, true
}

func (h *AutonomyHandler) list(context.Context, request) (string, error) {
	pending, err := h.store.PendingReminders()
	if err != nil {
		return "", fmt.Errorf("load reminders: %w", err)
	}
	if len(pending) == 0 {
		return "You have no pending reminders.", nil
	}
	lines := []string{fmt.Sprintf("⏰ Pending reminders (%d):", len(pending))}
	for _, r := range pending {
		lines = append(lines, fmt.Sprintf("  • %s: %s", r.TriggerTime.Format("Mon 15:04"), r.Message))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *AutonomyHandler) brief(context.Context, request) (string, error) {
	now := h.now()
	parts := []string{}
	if b := proactive.MorningBrief(h.store, now); b != "" {
		parts = append(parts, b)
	}
	if pending, err := h.store.PendingReminders(); err == nil && len(pending) > 0 {
		parts = append(parts, fmt.Sprintf("You have %d pending reminders; the next one is \"%s\" at %s.",
			len(pending), pending[0].Message, pending[0].TriggerTime.Format("15:04")))
	}
	if len(parts) == 0 {
		return "Nothing to report yet. Talk to me a bit more and I'll learn your routine.", nil
	}
	return strings.Join(parts, " "), nil
}

func (h *AutonomyHandler) suggest(context.Context, request) (string, error) {
	now := h.now()
	if near, err := h.store.PatternsNear(now.Hour()); err == nil && len(near) > 0 {
		return fmt.Sprintf("Around this time you usually work on %s tasks (%d times so far). Want to start there?", near[0].TaskType, near[0].Count), nil
	}
	if totals, err := h.store.PatternTotals(3); err == nil && len(totals) > 0 {
		names := make([]string, 0, len(totals))
		for _, p := range totals {
			names = append(names, p.TaskType)
		}
		return "You most often ask me about " + strings.Join(names, ", ") + ". Pick one and I'll help.", nil
	}
	return "I don't know your routine yet. Once we've worked together a while I'll suggest what to do next.", nil
}
