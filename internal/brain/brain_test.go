package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(hour int) func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 2, hour, 30, 0, 0, time.Local) }
}

func longQuestion() string {
	return "can you explain in detail how the tcp three way handshake works and compare it with the way quic sets up a new connection over udp please"
}

func newReasoner(fake *llmtest.Fake) *Reasoner {
	return NewReasoner(fake, ReasonerConfig{
		Persona:       "You are JARVIS.",
		AssistantName: "JARVIS",
		Threshold:     20,
		MaxRetries:    1,
		Now:           fixedClock(9),
	})
}

func TestMatchKeywordsFirstMatchWins(t *testing.T) {
	cases := []struct {
		input string
		want  Intent
	}{
		{"calculate 15 + 27", IntentUtility},
		{"remind me to call mom", IntentAutonomy},     // autonomy precedes telephony
		{"what is the latest on mars", IntentUtility}, // "what is" precedes search
		{"take a note about milk", IntentNotes},
		{"my name is Alex", IntentMemory},
		{"open chrome", IntentSystem},
		{"who is the mayor of paris", IntentSearch},
		{"write code for fizzbuzz", IntentCode},
		{"take a screenshot", IntentSystem}, // system precedes vision
		{"describe the image on my desk", IntentVision},
		{"SEND MESSAGE to bob", IntentTelephony},
	}
	for _, tc := range cases {
		got, ok := MatchKeywords(tc.input)
		require.True(t, ok, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	_, ok := MatchKeywords("tell me a joke")
	assert.False(t, ok)
}

func TestClassifyKeywordSkipsInference(t *testing.T) {
	fake := llmtest.Returning("code")
	c := NewClassifier(fake)

	assert.Equal(t, IntentUtility, c.Classify(context.Background(), "calculate 15 + 27"))
	assert.Zero(t, fake.CallCount())
}

func TestClassifyFallsBackToModel(t *testing.T) {
	cases := map[string]Intent{
		"Search.":            IntentSearch,
		"  CODE ":            IntentCode,
		"category: notes":    IntentNotes,
		"I think it's phone": IntentTelephony,
		"banana":             IntentChat,
	}
	for reply, want := range cases {
		fake := llmtest.Returning(reply)
		c := NewClassifier(fake)
		assert.Equal(t, want, c.Classify(context.Background(), "tell me a joke"), reply)
		require.Equal(t, 1, fake.CallCount())
		call := fake.Calls()[0]
		assert.Equal(t, llm.TierFast, call.Tier)
		assert.Contains(t, call.Prompt, `User request: "tell me a joke"`)
	}
}

func TestClassifyBackendErrorIsChat(t *testing.T) {
	c := NewClassifier(llmtest.Failing(llm.ErrTimeout))
	assert.Equal(t, IntentChat, c.Classify(context.Background(), "tell me a joke"))
}

func TestSelector(t *testing.T) {
	s := Selector{Threshold: 20}
	assert.Equal(t, llm.TierFast, s.Select("explain in detail why"))
	assert.Equal(t, llm.TierSmart, s.Select(longQuestion()))
	assert.Equal(t, llm.TierFast, s.Select(strings.Repeat("word ", 25)))
}

func TestTimeTone(t *testing.T) {
	assert.Equal(t, "It's morning. Be concise and focused.", TimeTone(5))
	assert.Equal(t, "It's morning. Be concise and focused.", TimeTone(11))
	assert.Equal(t, "It's afternoon. Be balanced and helpful.", TimeTone(12))
	assert.Equal(t, "It's evening. Be relaxed and conversational.", TimeTone(20))
	assert.Equal(t, "It's late night. Be brief unless asked for detail.", TimeTone(21))
	assert.Equal(t, "It's late night. Be brief unless asked for detail.", TimeTone(4))
}

func TestParseScore(t *testing.T) {
	assert.Equal(t, 8, ParseScore("8"))
	assert.Equal(t, 10, ParseScore("10/10"))
	assert.Equal(t, 75, ParseScore("7 out of 5"))
	assert.Equal(t, 7, ParseScore("great answer"))
	assert.Equal(t, 5, ParseScore("Score: 5"))
}

func TestRespondShortInputSingleCall(t *testing.T) {
	fake := llmtest.Returning("Paris.")
	r := newReasoner(fake)

	out := r.Respond(context.Background(), "capital of France?", "Known facts about user:\n  • name: Alex")
	assert.Equal(t, "Paris.", out)
	require.Equal(t, 1, fake.CallCount())

	call := fake.Calls()[0]
	assert.Equal(t, llm.TierFast, call.Tier)
	assert.Equal(t, "You are JARVIS.\nIt's morning. Be concise and focused.\n\nRelevant context from memory:\nKnown facts about user:\n  • name: Alex", call.System)
	assert.True(t, strings.HasPrefix(call.Prompt, "User: capital of France?\n\n"))
	assert.True(t, strings.HasSuffix(call.Prompt, "\n\nJARVIS:"))
}

func TestRespondPassingScoreKeepsAnswer(t *testing.T) {
	fake := llmtest.Returning("long answer", "6")
	r := newReasoner(fake)

	out := r.Respond(context.Background(), longQuestion(), "")
	assert.Equal(t, "long answer", out)
	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, llm.TierSmart, calls[0].Tier)
	assert.Equal(t, llm.TierFast, calls[1].Tier)
	assert.Contains(t, calls[1].Prompt, `Response: "long answer"`)
}

func TestRespondLowScoreRetriesOnce(t *testing.T) {
	fake := llmtest.Returning("weak answer", "5", "better answer", "1")
	r := newReasoner(fake)

	out := r.Respond(context.Background(), longQuestion(), "ctx")
	assert.Equal(t, "better answer", out)
	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, llm.TierSmart, calls[2].Tier)
	assert.Equal(t, "You are JARVIS.\n\nContext:\nctx", calls[2].System)
	assert.True(t, strings.HasPrefix(calls[2].Prompt, "The previous answer to this question was not good enough."))
}

func TestRespondRetryCeilingIgnoresMaxRetries(t *testing.T) {
	fake := llmtest.Returning("weak answer", "2", "still weak", "2", "again", "2")
	r := NewReasoner(fake, ReasonerConfig{Threshold: 20, MaxRetries: 3, Now: fixedClock(9)})

	out := r.Respond(context.Background(), longQuestion(), "")
	assert.Equal(t, "still weak", out)
	assert.Equal(t, 3, fake.CallCount())
}

func TestRespondSkipsReflectionAtThreshold(t *testing.T) {
	input := strings.TrimSpace(strings.Repeat("word ", 20))
	require.Equal(t, 20, WordCount(input))

	fake := llmtest.Returning("answer", "1", "retry")
	r := NewReasoner(fake, ReasonerConfig{Threshold: 20, MaxRetries: 1, Now: fixedClock(9)})
	assert.Equal(t, "answer", r.Respond(context.Background(), input, ""))
	assert.Equal(t, 1, fake.CallCount())

	fake = llmtest.Returning("answer", "1", "retry")
	r = NewReasoner(fake, ReasonerConfig{Threshold: 20, MaxRetries: 1, Now: fixedClock(9)})
	assert.Equal(t, "retry", r.Respond(context.Background(), input+" more", ""))
	assert.Equal(t, 3, fake.CallCount())
}

func TestRespondUnparsableScoreAccepts(t *testing.T) {
	fake := llmtest.Returning("answer", "pretty good")
	out := newReasoner(fake).Respond(context.Background(), longQuestion(), "")
	assert.Equal(t, "answer", out)
	assert.Equal(t, 2, fake.CallCount())
}

func TestRespondNoReflectionWhenDisabled(t *testing.T) {
	fake := llmtest.Returning("answer", "1")
	r := NewReasoner(fake, ReasonerConfig{Threshold: 20, MaxRetries: 0, Now: fixedClock(22)})
	assert.Equal(t, "answer", r.Respond(context.Background(), longQuestion(), ""))
	assert.Equal(t, 1, fake.CallCount())
}

func TestRespondEvalTruncatesResponse(t *testing.T) {
	long := strings.Repeat("a", 900)
	fake := llmtest.Returning(long, "9")
	newReasoner(fake).Respond(context.Background(), longQuestion(), "")
	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, `Response: "`+strings.Repeat("a", 500)+`"`)
	assert.NotContains(t, calls[1].Prompt, strings.Repeat("a", 501))
}

func TestRespondBackendDownIsDegradedText(t *testing.T) {
	fake := llmtest.Failing(&llm.Error{Op: "generate", Err: llm.ErrUnavailable})
	out := newReasoner(fake).Respond(context.Background(), "hello", "")
	assert.Equal(t, "I can't reach my language model. Make sure Ollama is running.", out)
}

func TestPlan(t *testing.T) {
	ctx := context.Background()

	fake := llmtest.Returning(`Here: ["open chrome", "take a screenshot"]`)
	steps := NewPlanner(fake).Plan(ctx, "open chrome then take a screenshot")
	assert.Equal(t, []string{"open chrome", "take a screenshot"}, steps)

	fake = llmtest.Returning("SINGLE")
	assert.Nil(t, NewPlanner(fake).Plan(ctx, "open chrome then take a screenshot"))

	fake = llmtest.Returning(`["only one"]`)
	assert.Nil(t, NewPlanner(fake).Plan(ctx, "open chrome then take a screenshot"))

	fake = llmtest.Returning(`["broken",`)
	assert.Nil(t, NewPlanner(fake).Plan(ctx, "open chrome then take a screenshot"))

	fake = llmtest.Returning(`["a", "b"]`)
	assert.Nil(t, NewPlanner(fake).Plan(ctx, "open chrome"))
	assert.Zero(t, fake.CallCount(), "no connective, no inference")

	assert.Nil(t, NewPlanner(llmtest.Failing(errors.New("down"))).Plan(ctx, "a then b"))
}

func TestParsePlanSingleCaseInsensitive(t *testing.T) {
	assert.Nil(t, ParsePlan(`single ["a","b"]`))
}

func TestParsePlanCapsSteps(t *testing.T) {
	steps := ParsePlan(`["a","b","c","d","e","f","g","h"]`)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, steps)
}

func TestRoute(t *testing.T) {
	cfg := config.DefaultConfig()
	fake := llmtest.Returning(`["open chrome", "take a screenshot"]`)
	b := NewWithClock(fake, cfg, fixedClock(10))

	res := b.Route(context.Background(), "open chrome then take a screenshot", "ctx")
	assert.Equal(t, IntentSystem, res.Intent)
	assert.Equal(t, llm.TierFast, res.Model)
	assert.Equal(t, "ctx", res.MemoryContext)
	assert.Equal(t, []string{"open chrome", "take a screenshot"}, res.Steps)
	assert.Equal(t, 1, fake.CallCount(), "keyword intent plus one planning call")
}
