// Package assistant owns the per-request pipeline: build memory context,
// route, execute and record the exchange. One request runs at a time.
package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/brain"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/logging"
	"github.com/stellarlinkco/jarvis/internal/memory"
	"github.com/stellarlinkco/jarvis/internal/proactive"
)

const noInput = "Sorry, I didn't receive any input."

// Router turns a request into a routing decision.
type Router interface {
	Route(ctx context.Context, input, memCtx string) brain.RoutingResult
}

// Runner executes a routing decision and always yields text.
type Runner interface {
	Execute(ctx context.Context, r brain.RoutingResult) string
}

// Reply is the outcome of one processed request.
type Reply struct {
	Text    string
	Intent  brain.Intent
	Tier    llm.Tier
	Steps   int
	Elapsed time.Duration
}

// Status is a snapshot for the status command.
type Status struct {
	SessionID string
	Privacy   bool
	Counts    memory.Counts
}

type Options struct {
	Router   Router
	Executor Runner
	Memory   *memory.Manager
	// Models names the concrete model behind a tier for the conversation log.
	Models interface{ Model(llm.Tier) string }
	Now    func() time.Time
}

type Assistant struct {
	mu        sync.Mutex
	router    Router
	exec      Runner
	mem       *memory.Manager
	models    interface{ Model(llm.Tier) string }
	now       func() time.Time
	sessionID string
	log       zerolog.Logger
}

func New(opts Options) *Assistant {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &Assistant{
		router: opts.Router,
		exec:   opts.Executor,
		mem:    opts.Memory,
		models: opts.Models,
		now:    opts.Now,
		log:    logging.For("assistant"),
	}
	a.sessionID = NewSessionID(a.now())
	return a
}

// NewSessionID returns session_YYYYMMDD_HHMMSS_<6 hex>.
func NewSessionID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "session_" + now.Format("20060102_150405") + "_" + id[:6]
}

func (a *Assistant) SessionID() string { return a.sessionID }

// Process runs one request through the pipeline. It never fails: backend
// and handler problems come back as text.
func (a *Assistant) Process(ctx context.Context, input string) Reply {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reply{Text: noInput, Intent: brain.IntentChat}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now()
	memCtx := a.mem.Context(ctx, input)
	route := a.router.Route(ctx, input, memCtx)
	a.log.Info().
		Str("intent", string(route.Intent)).
		Str("tier", string(route.Model)).
		Int("steps", len(route.Steps)).
		Msg("routed")

	text := a.exec.Execute(ctx, route)

	model := string(route.Model)
	if a.models != nil {
		model = a.models.Model(route.Model)
	}
	a.mem.RecordExchange(ctx, memory.Exchange{
		SessionID: a.sessionID,
		UserInput: input,
		Response:  text,
		Intent:    string(route.Intent),
		ModelUsed: model,
		Timestamp: start,
	})

	return Reply{
		Text:    text,
		Intent:  route.Intent,
		Tier:    route.Model,
		Steps:   len(route.Steps),
		Elapsed: a.now().Sub(start),
	}
}

// Deliver accepts a proactive notice and returns the text to show. Reminder
// notices are marked done so they are not raised again.
func (a *Assistant) Deliver(n proactive.Notice) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n.Kind == proactive.NoticeReminder && n.ReminderID != 0 {
		if err := a.mem.CompleteReminder(n.ReminderID); err != nil {
			a.log.Error().Err(err).Int64("reminder", n.ReminderID).Msg("complete reminder")
		}
	}
	return n.Text
}

func (a *Assistant) Status(ctx context.Context) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts, err := a.mem.Counts(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		SessionID: a.sessionID,
		Privacy:   a.mem.Privacy().Enabled(),
		Counts:    counts,
	}, nil
}
