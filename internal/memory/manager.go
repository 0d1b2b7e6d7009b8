package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const (
	wipeRefusal = "Memory wipe requires confirmation. Say 'wipe memory confirm' to proceed."
	wipeDone    = "All memories have been wiped. Starting fresh."

	episodeStampLayout = "2006-01-02T15:04:05.000000"
)

type Options struct {
	Engine             *Engine
	Episodes           EpisodeIndex
	LLM                llm.Client
	Privacy            *PrivacyGate
	MaxShortTerm       int
	MaxSemanticResults int
	AssistantName      string
	ExportDir          string
}

// Manager is the single writer of facts, conversations, episodes and
// patterns. It layers the short-term window and the privacy gate on top of
// the stores.
type Manager struct {
	engine      *Engine
	episodes    EpisodeIndex
	embedder    llm.Embedder
	extractor   *FactExtractor
	short       *ShortTerm
	privacy     *PrivacyGate
	maxSemantic int
	exportDir   string
	now         func() time.Time
	log         zerolog.Logger
}

func NewManager(opts Options) *Manager {
	if opts.Episodes == nil && opts.Engine != nil {
		opts.Episodes = NewSQLiteEpisodes(opts.Engine)
	}
	if opts.Privacy == nil {
		opts.Privacy = NewPrivacyGate(false)
	}
	if opts.MaxSemanticResults <= 0 {
		opts.MaxSemanticResults = 3
	}
	return &Manager{
		engine:      opts.Engine,
		episodes:    opts.Episodes,
		embedder:    opts.LLM,
		extractor:   NewFactExtractor(opts.LLM),
		short:       NewShortTerm(opts.MaxShortTerm, opts.AssistantName),
		privacy:     opts.Privacy,
		maxSemantic: opts.MaxSemanticResults,
		exportDir:   opts.ExportDir,
		now:         time.Now,
		log:         logging.For("memory"),
	}
}

// SetClock overrides the time source (tests).
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.engine.SetClock(now)
}

func (m *Manager) Privacy() *PrivacyGate { return m.privacy }

func (m *Manager) ShortTerm() *ShortTerm { return m.short }

// RecordExchange stores a completed turn across every layer. The short-term
// window always receives both turns; durable layers are skipped in privacy
// mode. Store failures are logged and only affect their own entity.
func (m *Manager) RecordExchange(ctx context.Context, ex Exchange) {
	if ex.Timestamp.IsZero() {
		ex.Timestamp = m.now()
	}
	m.short.Add(RoleUser, ex.UserInput)
	m.short.Add(RoleAssistant, ex.Response)

	if m.privacy.Enabled() {
		return
	}

	if err := m.engine.LogConversation(ex); err != nil {
		m.log.Error().Err(err).Msg("log conversation")
	}
	m.addEpisode(ctx, ex)
	if err := m.engine.RecordPattern(ex.Intent, ex.Timestamp); err != nil {
		m.log.Error().Err(err).Msg("record pattern")
	}

	for _, f := range m.extractor.Extract(ctx, ex.UserInput) {
		if m.privacy.Enabled() {
			return
		}
		if err := m.engine.UpsertFact(f.Category, f.Key, f.Value, 1.0); err != nil {
			m.log.Error().Err(err).Str("key", f.Key).Msg("store fact")
			continue
		}
		m.log.Info().Str("category", f.Category).Str("key", f.Key).Msg("fact stored")
	}
}

func (m *Manager) addEpisode(ctx context.Context, ex Exchange) {
	if m.episodes == nil || m.embedder == nil {
		return
	}
	doc := fmt.Sprintf("User: %s\nJARVIS: %s", ex.UserInput, ex.Response)
	vec, err := m.embedder.Embed(ctx, doc)
	if err != nil {
		m.log.Warn().Err(err).Msg("embed episode")
		return
	}
	ts := ex.Timestamp.Format(episodeStampLayout)
	err = m.episodes.Add(ctx, Episode{
		ID:        ex.SessionID + "_" + ts,
		Document:  doc,
		Embedding: vec,
		Intent:    ex.Intent,
		Timestamp: ts,
		SessionID: ex.SessionID,
	})
	if err != nil {
		m.log.Error().Err(err).Msg("add episode")
	}
}

// SearchEpisodes returns the documents of the episodes nearest to query.
// Embedding or index failures yield nothing.
func (m *Manager) SearchEpisodes(ctx context.Context, query string, n int) []string {
	if m.episodes == nil || m.embedder == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	if n <= 0 {
		n = m.maxSemantic
	}
	count, err := m.episodes.Count(ctx)
	if err != nil || count == 0 {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.log.Debug().Err(err).Msg("embed query")
		return nil
	}
	hits, err := m.episodes.Search(ctx, vec, n)
	if err != nil {
		m.log.Warn().Err(err).Msg("search episodes")
		return nil
	}
	docs := make([]string, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.Document)
	}
	return docs
}

func (m *Manager) Facts(limit int) ([]Fact, error) { return m.engine.Facts(limit) }

func (m *Manager) RecentConversations(limit int) ([]Conversation, error) {
	return m.engine.RecentConversations(limit)
}

func (m *Manager) SearchConversations(term string, limit int) ([]Conversation, error) {
	return m.engine.SearchConversations(term, limit)
}

func (m *Manager) PatternsNear(hour int) ([]PatternCount, error) { return m.engine.PatternsNear(hour) }

func (m *Manager) PatternTotals(limit int) ([]PatternCount, error) {
	return m.engine.PatternTotals(limit)
}

func (m *Manager) Analytics() (Analytics, error) { return m.engine.Analytics() }

func (m *Manager) Counts(ctx context.Context) (Counts, error) {
	c, err := m.engine.Counts()
	if err != nil {
		return c, err
	}
	if m.episodes != nil {
		if n, err := m.episodes.Count(ctx); err == nil {
			c.Episodes = n
		}
	}
	return c, nil
}

func (m *Manager) AddReminder(message string, at time.Time) (int64, error) {
	return m.engine.AddReminder(message, at)
}

func (m *Manager) PendingReminders() ([]Reminder, error) { return m.engine.PendingReminders() }

func (m *Manager) DueReminders(now time.Time) ([]Reminder, error) {
	return m.engine.DueReminders(now)
}

func (m *Manager) CompleteReminder(id int64) error { return m.engine.CompleteReminder(id) }

// Export writes every fact, logged conversation and pattern total to a JSON
// file. An empty path picks a timestamped file in the export directory.
func (m *Manager) Export(path string) (string, error) {
	doc, err := m.engine.ExportData()
	if err != nil {
		return "", fmt.Errorf("export memories: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(m.exportDir, "jarvis_memory_export_"+m.now().Format("20060102_150405")+".json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return fmt.Sprintf("Exported %d facts, %d conversations, %d patterns to %s",
		len(doc.Facts), len(doc.Conversations), len(doc.Patterns), path), nil
}

// Wipe erases every durable store, the episode collection and the
// short-term window. Without confirm nothing changes.
func (m *Manager) Wipe(ctx context.Context, confirm bool) (string, error) {
	if !confirm {
		return wipeRefusal, nil
	}
	if err := m.engine.Wipe(); err != nil {
		return "", err
	}
	if m.episodes != nil {
		if err := m.episodes.Reset(ctx); err != nil {
			return "", err
		}
	}
	m.short.Clear()
	m.log.Warn().Msg("memories wiped")
	return wipeDone, nil
}

// ForgetAbout deletes facts and logged conversations mentioning topic.
func (m *Manager) ForgetAbout(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("forget: empty topic")
	}
	facts, convs, err := m.engine.ForgetTopic(topic)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Forgot %d facts and %d conversations about '%s'.", facts, convs, topic), nil
}
