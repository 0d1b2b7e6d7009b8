package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

// Intent is the closed set of request categories.
type Intent string

const (
	IntentChat      Intent = "chat"
	IntentCode      Intent = "code"
	IntentSearch    Intent = "search"
	IntentSystem    Intent = "system"
	IntentMemory    Intent = "memory"
	IntentNotes     Intent = "notes"
	IntentUtility   Intent = "utility"
	IntentVision    Intent = "vision"
	IntentAutonomy  Intent = "autonomy"
	IntentTelephony Intent = "telephony"
)

// vocabulary is scanned in order against a tier-2 reply. Each intent is
// recognized by any of its words.
var vocabulary = []struct {
	intent Intent
	words  []string
}{
	{IntentCode, []string{"code"}},
	{IntentSearch, []string{"search"}},
	{IntentSystem, []string{"system"}},
	{IntentMemory, []string{"memory"}},
	{IntentNotes, []string{"notes"}},
	{IntentUtility, []string{"utility"}},
	{IntentChat, []string{"chat"}},
	{IntentVision, []string{"vision"}},
	{IntentAutonomy, []string{"autonomy"}},
	{IntentTelephony, []string{"telephony", "phone"}},
}

// keywordTable is the tier-1 table. Order matters: the first intent with a
// matching phrase wins.
var keywordTable = []struct {
	intent  Intent
	phrases []string
}{
	{IntentAutonomy, []string{
		"remind me", "reminder", "proactive", "suggest", "autonomy", "self-initiate",
		"self initiated", "self-initiated", "daily brief", "morning brief", "agenda",
		"routine", "habit", "motivate", "motivation", "check in", "check-in",
		"periodic", "interval", "habit tracker", "goal", "goals", "self improvement",
		"self-improvement", "self help", "self-help",
	}},
	{IntentTelephony, []string{
		"call", "phone", "dial", "sms", "text", "send message", "whatsapp",
		"notification", "missed call", "incoming call", "outgoing call", "contact",
		"contacts", "mobile", "cell", "ring", "voicemail", "caller", "hang up",
		"answer", "mute call", "unmute call",
	}},
	{IntentUtility, []string{
		"calculate", "convert", "password", "generate password",
		"what is", "how much is", "math", "uppercase", "lowercase",
		"word count", "character count", "random",
	}},
	{IntentNotes, []string{
		"take a note", "save a note", "note that", "my notes",
		"show notes", "search notes", "delete note",
	}},
	{IntentMemory, []string{
		"remember that", "do you remember", "what did i say",
		"what do you know about me", "forget", "my name is",
		"i prefer", "i like", "i hate", "i work at", "i live in",
		"privacy mode", "go private", "export memory", "wipe memory",
	}},
	{IntentSystem, []string{
		"open ", "close ", "launch ", "start ", "kill ",
		"volume", "mute", "unmute", "screenshot", "battery",
		"cpu usage", "disk space", "system info", "ip address",
		"wifi", "process", "coding setup",
	}},
	{IntentSearch, []string{
		"search for", "look up", "google", "find information",
		"what is the latest", "news about", "search the web",
		"who is", "when did", "where is",
	}},
	{IntentCode, []string{
		"write code", "write a script", "debug", "fix this code",
		"explain this code", "python script", "javascript",
		"function that", "program", "algorithm",
	}},
	{IntentVision, []string{
		"see on screen", "what do you see", "read screen", "describe screen",
		"find button", "click button", "where is", "screenshot", "vision",
		"scroll", "type on screen", "ui automation", "look at", "show me",
		"highlight", "select", "detect", "screen", "window", "image",
	}},
}

// MatchKeywords runs the tier-1 table over text.
func MatchKeywords(text string) (Intent, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, row := range keywordTable {
		for _, p := range row.phrases {
			if strings.Contains(lower, p) {
				return row.intent, true
			}
		}
	}
	return "", false
}

// ParseIntent maps a free-form reply onto the vocabulary; unknown replies are
// chat.
func ParseIntent(reply string) Intent {
	lower := strings.ToLower(strings.TrimSpace(reply))
	for _, v := range vocabulary {
		for _, w := range v.words {
			if strings.Contains(lower, w) {
				return v.intent
			}
		}
	}
	return IntentChat
}

// Classifier resolves a request to an intent: keyword table first, then one
// fast-tier inference call.
type Classifier struct {
	llm llm.Client
	log zerolog.Logger
}

func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{llm: client, log: logging.For("brain")}
}

func (c *Classifier) Classify(ctx context.Context, text string) Intent {
	if intent, ok := MatchKeywords(text); ok {
		c.log.Debug().Str("intent", string(intent)).Msg("intent (pattern)")
		return intent
	}

	prompt := fmt.Sprintf(`Classify this user request into exactly ONE category.

Categories:
- code: writing, debugging, explaining code or programming
- search: finding information online, current events, web lookup
- system: open/close apps, system control, file operations, volume, screenshots
- memory: recall past conversations, remember facts, user preferences
- notes: taking notes, saving notes, searching notes
- utility: math calculations, unit conversions, password generation, text tools
- chat: general conversation, questions, opinions, advice

User request: "%s"

Reply with ONLY the category word. Nothing else.`, text)

	reply, err := c.llm.Generate(ctx, llm.TierFast, prompt, "")
	if err != nil {
		c.log.Warn().Err(err).Msg("intent classification failed")
		return IntentChat
	}
	intent := ParseIntent(reply)
	c.log.Debug().Str("intent", string(intent)).Msg("intent (model)")
	return intent
}
