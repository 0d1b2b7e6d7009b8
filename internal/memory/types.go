package memory

import "time"

// Fact is one durable statement about the user. (Category, Key) is unique.
type Fact struct {
	ID         int64
	Category   string
	Key        string
	Value      string
	Confidence float64
	CreatedAt  string
	UpdatedAt  string
}

// Exchange is one completed user/assistant turn.
type Exchange struct {
	SessionID string
	UserInput string
	Response  string
	Intent    string
	ModelUsed string
	Timestamp time.Time
}

// Conversation is a logged exchange as read back from the store.
type Conversation struct {
	ID        int64  `json:"-"`
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
	Response  string `json:"response"`
	Intent    string `json:"intent"`
	ModelUsed string `json:"-"`
	Timestamp string `json:"timestamp"`
}

// Episode is a semantically indexed exchange document.
type Episode struct {
	ID        string
	Document  string
	Embedding []float32
	Intent    string
	Timestamp string
	SessionID string
	// Score is the cosine similarity to the query; set by searches only.
	Score float64
}

// PatternCount is a task type with a usage count.
type PatternCount struct {
	TaskType string `json:"task_type"`
	Count    int    `json:"count"`
}

// Reminder is a user-scheduled notice.
type Reminder struct {
	ID          int64
	Message     string
	TriggerTime time.Time
	Done        bool
	CreatedAt   string
}

// Counts is a compact snapshot used by status reporting.
type Counts struct {
	Facts         int
	Conversations int
	Patterns      int
	Episodes      int
	Reminders     int
}

// Analytics summarizes the conversation log.
type Analytics struct {
	TotalConversations int            `json:"total_conversations"`
	ByIntent           map[string]int `json:"by_intent"`
	MostActiveHours    map[int]int    `json:"most_active_hours"`
	RecentSessions     int            `json:"recent_sessions"`
}

// ExportFact is the exported shape of a fact.
type ExportFact struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// ExportDocument is the single JSON document written by Export.
type ExportDocument struct {
	ExportedAt    string         `json:"exported_at"`
	Facts         []ExportFact   `json:"facts"`
	Conversations []Conversation `json:"conversations"`
	Patterns      []PatternCount `json:"patterns"`
}
