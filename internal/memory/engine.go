package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	schemaVersion = 1
	timeLayout    = "2006-01-02 15:04:05.000"
)

// Engine is the relational store for facts, the conversation log, usage
// patterns and reminders. Writes are serialized by mu.
type Engine struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

func NewEngine(dbPath string) (*Engine, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	e := &Engine{db: db, now: time.Now}
	if err := e.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := e.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// SetClock overrides the time source (tests).
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

func (e *Engine) stamp() string {
	return formatTime(e.now())
}

func formatTime(t time.Time) string {
	return t.In(time.Local).Format(timeLayout)
}

func (e *Engine) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 1.0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(category, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_updated ON facts(updated_at)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_input TEXT NOT NULL,
			response TEXT NOT NULL,
			intent TEXT NOT NULL DEFAULT '',
			model_used TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_ts ON conversations(timestamp)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_type TEXT NOT NULL,
			hour_of_day INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL,
			count INTEGER NOT NULL DEFAULT 1,
			last_used TEXT NOT NULL,
			UNIQUE(task_type, hour_of_day, day_of_week)
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message TEXT NOT NULL,
			trigger_time TEXT NOT NULL,
			is_done INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(is_done, trigger_time)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			embedding BLOB NOT NULL,
			intent TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			session_id TEXT NOT NULL
		)`,
		fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
	}

	for _, stmt := range stmts {
		if _, err := e.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// UpsertFact inserts a fact or overwrites the value of the existing
// (category, key) row.
func (e *Engine) UpsertFact(category, key, value string, confidence float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	category = strings.TrimSpace(category)
	if category == "" {
		category = "personal"
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("upsert fact: empty key")
	}
	if confidence <= 0 || confidence > 1 {
		confidence = 1
	}

	ts := e.stamp()
	_, err := e.db.Exec(`
		INSERT INTO facts (category, key, value, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET
			value = excluded.value,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, category, key, strings.TrimSpace(value), confidence, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

// Facts returns facts most recently updated first. limit <= 0 means all.
func (e *Engine) Facts(limit int) ([]Fact, error) {
	q := `
		SELECT id, category, key, value, confidence, created_at, updated_at
		FROM facts
		ORDER BY updated_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := e.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	result := make([]Fact, 0)
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Category, &f.Key, &f.Value, &f.Confidence, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return result, nil
}

// DeleteFacts removes facts whose key contains the given substring.
func (e *Engine) DeleteFacts(keySubstr string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.db.Exec(`DELETE FROM facts WHERE key LIKE ?`, likePattern(keySubstr))
	if err != nil {
		return 0, fmt.Errorf("delete facts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (e *Engine) LogConversation(ex Exchange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := ex.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	_, err := e.db.Exec(`
		INSERT INTO conversations (session_id, user_input, response, intent, model_used, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ex.SessionID, ex.UserInput, ex.Response, ex.Intent, ex.ModelUsed, formatTime(ts))
	if err != nil {
		return fmt.Errorf("log conversation: %w", err)
	}
	return nil
}

// RecentConversations returns the newest logged exchanges first.
func (e *Engine) RecentConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := e.db.Query(`
		SELECT id, session_id, user_input, response, intent, model_used, timestamp
		FROM conversations
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

// SearchConversations returns logged exchanges mentioning the term.
func (e *Engine) SearchConversations(term string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 5
	}
	p := likePattern(term)
	rows, err := e.db.Query(`
		SELECT id, session_id, user_input, response, intent, model_used, timestamp
		FROM conversations
		WHERE user_input LIKE ? OR response LIKE ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, p, p, limit)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

// RecordPattern increments the counter for taskType at the hour and weekday
// of at. Weekdays are numbered Monday=0.
func (e *Engine) RecordPattern(taskType string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if at.IsZero() {
		at = e.now()
	}
	_, err := e.db.Exec(`
		INSERT INTO patterns (task_type, hour_of_day, day_of_week, count, last_used)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(task_type, hour_of_day, day_of_week) DO UPDATE SET
			count = count + 1,
			last_used = excluded.last_used
	`, taskType, at.Hour(), weekdayIndex(at), formatTime(at))
	if err != nil {
		return fmt.Errorf("record pattern: %w", err)
	}
	return nil
}

// PatternsNear returns up to 5 task types used within one hour of hour,
// most frequent first.
func (e *Engine) PatternsNear(hour int) ([]PatternCount, error) {
	rows, err := e.db.Query(`
		SELECT task_type, count FROM patterns
		WHERE hour_of_day BETWEEN ? AND ?
		ORDER BY count DESC, last_used DESC
		LIMIT 5
	`, hour-1, hour+1)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()
	return scanPatternCounts(rows)
}

// PatternTotals returns per task type totals, most frequent first.
// limit <= 0 means all.
func (e *Engine) PatternTotals(limit int) ([]PatternCount, error) {
	q := `SELECT task_type, SUM(count) AS total FROM patterns GROUP BY task_type ORDER BY total DESC, task_type ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := e.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query pattern totals: %w", err)
	}
	defer rows.Close()
	return scanPatternCounts(rows)
}

func (e *Engine) AddReminder(message string, trigger time.Time) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	message = strings.TrimSpace(message)
	if message == "" {
		return 0, fmt.Errorf("add reminder: empty message")
	}
	res, err := e.db.Exec(`
		INSERT INTO reminders (message, trigger_time, is_done, created_at)
		VALUES (?, ?, 0, ?)
	`, message, formatTime(trigger), e.stamp())
	if err != nil {
		return 0, fmt.Errorf("add reminder: %w", err)
	}
	return res.LastInsertId()
}

// DueReminders returns pending reminders whose trigger time is not after now.
func (e *Engine) DueReminders(now time.Time) ([]Reminder, error) {
	rows, err := e.db.Query(`
		SELECT id, message, trigger_time, is_done, created_at
		FROM reminders
		WHERE is_done = 0 AND trigger_time <= ?
		ORDER BY trigger_time ASC, id ASC
	`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// PendingReminders returns all reminders not yet delivered, soonest first.
func (e *Engine) PendingReminders() ([]Reminder, error) {
	rows, err := e.db.Query(`
		SELECT id, message, trigger_time, is_done, created_at
		FROM reminders
		WHERE is_done = 0
		ORDER BY trigger_time ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (e *Engine) CompleteReminder(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.db.Exec(`UPDATE reminders SET is_done = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("complete reminder: %w", err)
	}
	return nil
}

func (e *Engine) Counts() (Counts, error) {
	var c Counts
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM facts`, &c.Facts},
		{`SELECT COUNT(*) FROM conversations`, &c.Conversations},
		{`SELECT COUNT(*) FROM patterns`, &c.Patterns},
		{`SELECT COUNT(*) FROM episodes`, &c.Episodes},
		{`SELECT COUNT(*) FROM reminders WHERE is_done = 0`, &c.Reminders},
	}
	for _, q := range queries {
		if err := e.db.QueryRow(q.sql).Scan(q.dest); err != nil {
			return Counts{}, fmt.Errorf("count: %w", err)
		}
	}
	return c, nil
}

// ForgetTopic deletes facts and logged conversations mentioning topic.
func (e *Engine) ForgetTopic(topic string) (facts, conversations int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := likePattern(topic)
	tx, err := e.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin forget: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM facts WHERE key LIKE ? OR value LIKE ?`, p, p)
	if err != nil {
		return 0, 0, fmt.Errorf("forget facts: %w", err)
	}
	facts, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM conversations WHERE user_input LIKE ? OR response LIKE ?`, p, p)
	if err != nil {
		return 0, 0, fmt.Errorf("forget conversations: %w", err)
	}
	conversations, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit forget: %w", err)
	}
	return facts, conversations, nil
}

func (e *Engine) Analytics() (Analytics, error) {
	a := Analytics{ByIntent: map[string]int{}, MostActiveHours: map[int]int{}}

	if err := e.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&a.TotalConversations); err != nil {
		return a, fmt.Errorf("analytics total: %w", err)
	}

	rows, err := e.db.Query(`SELECT intent, COUNT(*) AS cnt FROM conversations GROUP BY intent ORDER BY cnt DESC`)
	if err != nil {
		return a, fmt.Errorf("analytics by intent: %w", err)
	}
	a.ByIntent, err = scanCounts[string](rows)
	rows.Close()
	if err != nil {
		return a, fmt.Errorf("analytics by intent: %w", err)
	}

	rows, err = e.db.Query(`
		SELECT CAST(strftime('%H', timestamp) AS INTEGER) AS hour, COUNT(*) AS cnt
		FROM conversations GROUP BY hour ORDER BY cnt DESC LIMIT 5
	`)
	if err != nil {
		return a, fmt.Errorf("analytics by hour: %w", err)
	}
	a.MostActiveHours, err = scanCounts[int](rows)
	rows.Close()
	if err != nil {
		return a, fmt.Errorf("analytics by hour: %w", err)
	}

	if err := e.db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT session_id FROM conversations
			GROUP BY session_id ORDER BY MAX(timestamp) DESC LIMIT 5
		)
	`).Scan(&a.RecentSessions); err != nil {
		return a, fmt.Errorf("analytics sessions: %w", err)
	}
	return a, nil
}

// ExportData collects facts, the full conversation log and pattern totals.
func (e *Engine) ExportData() (ExportDocument, error) {
	doc := ExportDocument{
		ExportedAt:    e.now().Format(time.RFC3339),
		Facts:         []ExportFact{},
		Conversations: []Conversation{},
		Patterns:      []PatternCount{},
	}

	facts, err := e.Facts(0)
	if err != nil {
		return doc, err
	}
	for _, f := range facts {
		doc.Facts = append(doc.Facts, ExportFact{Category: f.Category, Key: f.Key, Value: f.Value})
	}

	rows, err := e.db.Query(`
		SELECT id, session_id, user_input, response, intent, model_used, timestamp
		FROM conversations ORDER BY timestamp ASC, id ASC
	`)
	if err != nil {
		return doc, fmt.Errorf("export conversations: %w", err)
	}
	convs, err := scanConversations(rows)
	rows.Close()
	if err != nil {
		return doc, err
	}
	doc.Conversations = convs

	patterns, err := e.PatternTotals(0)
	if err != nil {
		return doc, err
	}
	doc.Patterns = patterns
	return doc, nil
}

// Wipe clears facts, conversations, patterns and reminders.
func (e *Engine) Wipe() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin wipe: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"facts", "conversations", "patterns", "reminders"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}
	return nil
}

func scanConversations(rows *sql.Rows) ([]Conversation, error) {
	result := make([]Conversation, 0)
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.UserInput, &c.Response, &c.Intent, &c.ModelUsed, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return result, nil
}

// scanCounts reads (key, count) rows into a map.
func scanCounts[K comparable](rows *sql.Rows) (map[K]int, error) {
	out := make(map[K]int)
	for rows.Next() {
		var k K
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[k] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return out, nil
}

func scanPatternCounts(rows *sql.Rows) ([]PatternCount, error) {
	result := make([]PatternCount, 0)
	for rows.Next() {
		var p PatternCount
		if err := rows.Scan(&p.TaskType, &p.Count); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return result, nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	result := make([]Reminder, 0)
	for rows.Next() {
		var r Reminder
		var trigger string
		var done int
		if err := rows.Scan(&r.ID, &r.Message, &trigger, &done, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		t, err := time.ParseInLocation(timeLayout, trigger, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse reminder time: %w", err)
		}
		r.TriggerTime = t
		r.Done = done == 1
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return result, nil
}

// weekdayIndex numbers days Monday=0 .. Sunday=6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func likePattern(s string) string {
	return "%" + strings.TrimSpace(s) + "%"
}
