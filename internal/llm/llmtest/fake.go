// Package llmtest provides a scripted inference backend for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/stellarlinkco/jarvis/internal/llm"
)

// Call is one recorded Generate invocation.
type Call struct {
	Tier   llm.Tier
	Prompt string
	System string
}

// Reply is a scripted Generate result.
type Reply struct {
	Text string
	Err  error
}

// Fake implements llm.Client and llm.ImageDescriber. Respond wins over
// Replies; Replies are consumed in order and the last one repeats.
type Fake struct {
	Respond    func(tier llm.Tier, prompt, system string) (string, error)
	Replies    []Reply
	EmbedFn    func(text string) ([]float32, error)
	DescribeFn func(prompt string, images [][]byte) (string, error)

	mu         sync.Mutex
	calls      []Call
	embedCalls []string
	next       int
}

var (
	_ llm.Client         = (*Fake)(nil)
	_ llm.ImageDescriber = (*Fake)(nil)
)

// Returning builds a fake that answers every Generate with the given texts
// in order.
func Returning(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.Replies = append(f.Replies, Reply{Text: t})
	}
	return f
}

// Failing builds a fake whose Generate and Embed always fail with err.
func Failing(err error) *Fake {
	return &Fake{
		Replies: []Reply{{Err: err}},
		EmbedFn: func(string) ([]float32, error) { return nil, err },
	}
}

func (f *Fake) Generate(_ context.Context, tier llm.Tier, prompt, system string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Tier: tier, Prompt: prompt, System: system})
	respond := f.Respond
	var reply Reply
	if respond == nil && len(f.Replies) > 0 {
		i := f.next
		if i >= len(f.Replies) {
			i = len(f.Replies) - 1
		} else {
			f.next++
		}
		reply = f.Replies[i]
	}
	f.mu.Unlock()

	if respond != nil {
		return respond(tier, prompt, system)
	}
	return reply.Text, reply.Err
}

func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.embedCalls = append(f.embedCalls, text)
	fn := f.EmbedFn
	f.mu.Unlock()
	if fn != nil {
		return fn(text)
	}
	return HashEmbedding(text), nil
}

func (f *Fake) Model(tier llm.Tier) string {
	return "fake-" + string(tier)
}

func (f *Fake) Describe(ctx context.Context, prompt string, images [][]byte) (string, error) {
	if f.DescribeFn != nil {
		return f.DescribeFn(prompt, images)
	}
	return f.Generate(ctx, llm.TierFast, prompt, "")
}

// Calls returns a copy of the recorded Generate calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Generate calls so far.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// EmbedCalls returns the texts passed to Embed.
func (f *Fake) EmbedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.embedCalls))
	copy(out, f.embedCalls)
	return out
}

const hashDims = 64

// HashEmbedding is a deterministic bag-of-words vector: texts sharing words
// land close together.
func HashEmbedding(text string) []float32 {
	vec := make([]float32, hashDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%hashDims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
