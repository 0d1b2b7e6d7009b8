package proactive

import (
	"fmt"
	"strings"
	"time"

	"github.com/stellarlinkco/jarvis/internal/memory"
)

// Source is the read-only view of memory the proactive loop needs.
type Source interface {
	PatternsNear(hour int) ([]memory.PatternCount, error)
	Facts(limit int) ([]memory.Fact, error)
	Analytics() (memory.Analytics, error)
	DueReminders(now time.Time) ([]memory.Reminder, error)
}

// MorningBrief builds the greeting for now. It is empty when there is nothing
// to say beyond the greeting itself.
func MorningBrief(src Source, now time.Time) string {
	greeting := "Good morning!"
	if name := userName(src); name != "" {
		greeting = fmt.Sprintf("Good morning, %s!", name)
	}

	var parts []string
	if a, err := src.Analytics(); err == nil && a.TotalConversations > 0 {
		parts = append(parts, fmt.Sprintf("We've had %d conversations so far.", a.TotalConversations))
	}
	if patterns, err := src.PatternsNear(now.Hour()); err == nil && len(patterns) > 0 {
		parts = append(parts, fmt.Sprintf("You usually start with %s tasks around this time.", patterns[0].TaskType))
	}
	if len(parts) == 0 {
		return ""
	}
	return greeting + " " + strings.Join(parts, " ")
}

// userName returns the value of the most recently updated fact whose key
// mentions a name.
func userName(src Source) string {
	facts, err := src.Facts(0)
	if err != nil {
		return ""
	}
	for _, f := range facts {
		if strings.Contains(strings.ToLower(f.Key), "name") {
			return f.Value
		}
	}
	return ""
}
