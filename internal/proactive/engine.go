// Package proactive runs the background loop that notices things without
// being asked: the once-a-day morning brief and due reminders. It only reads
// memory and hands results off as Notices on a channel.
package proactive

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultBuffer   = 16
	reminderSweep   = "@every 1m"
	stopTimeout     = 5 * time.Second
)

type NoticeKind string

const (
	NoticeBrief    NoticeKind = "brief"
	NoticeReminder NoticeKind = "reminder"
)

// Notice is one proactive message for the user.
type Notice struct {
	Kind NoticeKind
	Text string
	// ReminderID is set for reminder notices.
	ReminderID int64
	At         time.Time
}

// PrivacyReader reports whether privacy mode is on.
type PrivacyReader interface {
	Enabled() bool
}

type Options struct {
	Interval    time.Duration
	MorningHour int
	Buffer      int
	Now         func() time.Time
	// Privacy, when set, suppresses the morning brief while enabled.
	Privacy PrivacyReader
}

type Engine struct {
	src         Source
	interval    time.Duration
	morningHour int
	now         func() time.Time
	privacy     PrivacyReader
	notices     chan Notice

	mu        sync.Mutex
	cron      *rcron.Cron
	cancel    context.CancelFunc
	stopCh    chan struct{}
	briefDate string
	emitted   map[int64]bool

	log zerolog.Logger
}

func New(src Source, opts Options) *Engine {
	if opts.Interval < time.Second {
		opts.Interval = DefaultInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		src:         src,
		interval:    opts.Interval,
		morningHour: opts.MorningHour,
		now:         opts.Now,
		privacy:     opts.Privacy,
		notices:     make(chan Notice, opts.Buffer),
		emitted:     make(map[int64]bool),
		log:         logging.For("proactive"),
	}
}

// ParseInterval reads a duration such as "5m", falling back to the default.
func ParseInterval(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < time.Second {
		return DefaultInterval
	}
	return d
}

// Notices is the receive side of the notice channel. It is never closed.
func (e *Engine) Notices() <-chan Notice { return e.notices }

func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})

	l := cronLogger{log: e.log}
	c := rcron.New(rcron.WithChain(rcron.Recover(l), rcron.SkipIfStillRunning(l)), rcron.WithLogger(l))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", e.interval), e.CheckCycle); err != nil {
		cancel()
		return fmt.Errorf("register check cycle: %w", err)
	}
	if _, err := c.AddFunc(reminderSweep, e.SweepReminders); err != nil {
		cancel()
		return fmt.Errorf("register reminder sweep: %w", err)
	}

	e.mu.Lock()
	e.cron = c
	e.cancel = cancel
	e.stopCh = stopCh
	e.mu.Unlock()

	c.Start()
	e.log.Info().Dur("interval", e.interval).Int("morning_hour", e.morningHour).Msg("proactive engine started")

	go func() {
		select {
		case <-runCtx.Done():
			e.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

// Stop halts the schedule and waits up to five seconds for a running check.
// It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, stopCh, c := e.cancel, e.stopCh, e.cron
	e.cancel, e.stopCh, e.cron = nil, nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	close(stopCh)
	cancel()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(stopTimeout):
		e.log.Warn().Msg("stop timeout waiting for running checks")
	}
	e.log.Info().Msg("proactive engine stopped")
}

// CheckCycle emits the morning brief on the first check inside the morning
// hour of each calendar day. Checks made in privacy mode do not count.
func (e *Engine) CheckCycle() {
	now := e.now()
	if e.privacy != nil && e.privacy.Enabled() {
		return
	}
	today := now.Format("2006-01-02")

	e.mu.Lock()
	due := now.Hour() == e.morningHour && e.briefDate != today
	if due {
		e.briefDate = today
	}
	e.mu.Unlock()
	if !due {
		return
	}

	brief := MorningBrief(e.src, now)
	if brief == "" {
		e.log.Debug().Msg("nothing to brief")
		return
	}
	e.log.Info().Str("brief", brief).Msg("morning brief")
	e.emit(Notice{Kind: NoticeBrief, Text: brief, At: now})
}

// SweepReminders emits every due reminder that has not been emitted yet.
// Reminders stay pending until the consumer completes them.
func (e *Engine) SweepReminders() {
	now := e.now()
	due, err := e.src.DueReminders(now)
	if err != nil {
		e.log.Warn().Err(err).Msg("load due reminders")
		return
	}

	pending := make(map[int64]bool, len(due))
	for _, r := range due {
		pending[r.ID] = true
		e.mu.Lock()
		seen := e.emitted[r.ID]
		e.mu.Unlock()
		if seen {
			continue
		}
		if e.emit(Notice{Kind: NoticeReminder, Text: "⏰ Reminder: " + r.Message, ReminderID: r.ID, At: now}) {
			e.mu.Lock()
			e.emitted[r.ID] = true
			e.mu.Unlock()
		}
	}

	e.mu.Lock()
	for id := range e.emitted {
		if !pending[id] {
			delete(e.emitted, id)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) emit(n Notice) bool {
	select {
	case e.notices <- n:
		return true
	default:
		e.log.Warn().Str("kind", string(n.Kind)).Msg("notice buffer full, dropping")
		return false
	}
}

// cronLogger routes robfig/cron's logging into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
