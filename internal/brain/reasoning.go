package brain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const (
	passingScore  = 6
	fallbackScore = 7
	evalExcerpt   = 500
)

// Reasoner runs the generate / evaluate / retry pipeline.
type Reasoner struct {
	llm        llm.Client
	selector   Selector
	persona    string
	name       string
	maxRetries int
	now        func() time.Time
	log        zerolog.Logger
}

type ReasonerConfig struct {
	Persona       string
	AssistantName string
	Threshold     int
	MaxRetries    int
	Now           func() time.Time
}

func NewReasoner(client llm.Client, cfg ReasonerConfig) *Reasoner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "JARVIS"
	}
	return &Reasoner{
		llm:        client,
		selector:   Selector{Threshold: cfg.Threshold},
		persona:    cfg.Persona,
		name:       cfg.AssistantName,
		maxRetries: cfg.MaxRetries,
		now:        cfg.Now,
		log:        logging.For("brain"),
	}
}

// TimeTone returns the tone instruction for an hour of the day.
func TimeTone(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "It's morning. Be concise and focused."
	case hour >= 12 && hour < 17:
		return "It's afternoon. Be balanced and helpful."
	case hour >= 17 && hour < 21:
		return "It's evening. Be relaxed and conversational."
	default:
		return "It's late night. Be brief unless asked for detail."
	}
}

// SystemPrompt builds the persona, tone and memory context block.
func (r *Reasoner) SystemPrompt(memCtx string) string {
	system := r.persona + "\n" + TimeTone(r.now().Hour())
	if memCtx != "" {
		system += "\n\nRelevant context from memory:\n" + memCtx
	}
	return system
}

// Respond answers input. Short requests get one generation; longer ones are
// scored by the fast tier and regenerated once on the smart tier when the
// score is below passing. Backend failures come back as degraded text.
func (r *Reasoner) Respond(ctx context.Context, input, memCtx string) string {
	tier := r.selector.Select(input)
	r.log.Debug().Str("model", r.llm.Model(tier)).Msg("reasoning")

	prompt := fmt.Sprintf(`User: %s

Think through this step by step, then provide a clear, helpful response.
If the question is simple, just answer directly — don't overthink it.

%s:`, input, r.name)

	response, err := r.llm.Generate(ctx, tier, prompt, r.SystemPrompt(memCtx))
	if err != nil {
		return llm.Degraded(err)
	}
	return r.reflect(ctx, input, response, memCtx)
}

func (r *Reasoner) reflect(ctx context.Context, input, response, memCtx string) string {
	if WordCount(input) <= r.selector.Threshold || r.maxRetries <= 0 {
		return response
	}

	evalPrompt := fmt.Sprintf(`Rate this response quality from 1-10.

User question: "%s"
Response: "%s"

Consider:
- Does it actually answer the question?
- Is it accurate and helpful?
- Is it concise enough?

Reply with ONLY a number 1-10.`, input, truncateRunes(response, evalExcerpt))

	score := fallbackScore
	if reply, err := r.llm.Generate(ctx, llm.TierFast, evalPrompt, ""); err != nil {
		r.log.Warn().Err(err).Msg("self-evaluation failed")
	} else {
		score = ParseScore(reply)
	}
	r.log.Debug().Int("score", score).Msg("self-evaluation")

	if score >= passingScore {
		return response
	}

	system := r.persona
	if memCtx != "" {
		system += "\n\nContext:\n" + memCtx
	}
	retryPrompt := fmt.Sprintf(`The previous answer to this question was not good enough.
Please provide a better, more accurate answer.

User: %s

%s:`, input, r.name)

	better, err := r.llm.Generate(ctx, llm.TierSmart, retryPrompt, system)
	if err != nil {
		r.log.Warn().Err(err).Msg("retry failed, keeping first answer")
		return response
	}
	return better
}

// ParseScore concatenates every digit in reply and reads the first two. A
// reply without digits scores 7.
func ParseScore(reply string) int {
	var digits strings.Builder
	for _, c := range reply {
		if unicode.IsDigit(c) && c < unicode.MaxASCII {
			digits.WriteRune(c)
		}
	}
	s := digits.String()
	if s == "" {
		return fallbackScore
	}
	if len(s) > 2 {
		s = s[:2]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallbackScore
	}
	return n
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
