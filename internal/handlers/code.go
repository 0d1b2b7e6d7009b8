package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/jarvis/internal/llm"
)

const codeInstructions = `You are an expert software developer. When writing code:
- Include clear comments
- Use best practices
- Handle edge cases
- Keep it concise but complete
If explaining code, be clear and educational.`

// CodeHandler generates, explains and debugs code on the smart tier.
type CodeHandler struct {
	llm     llm.Client
	persona string
	name    string
	routes  table
}

func NewCodeHandler(client llm.Client, persona, assistantName string) *CodeHandler {
	if assistantName == "" {
		assistantName = "JARVIS"
	}
	h := &CodeHandler{llm: client, persona: persona, name: assistantName}
	h.routes = table{
		{name: "explain", keywords: []string{"explain", "what does", "how does"}, do: h.mode("Walk through the code step by step before summarizing what it does.")},
		{name: "debug", keywords: []string{"debug", "fix", "bug", "error", "traceback", "stack trace"}, do: h.mode("Identify the root cause first, then show the corrected code.")},
		{name: "review", keywords: []string{"review", "refactor", "improve"}, do: h.mode("List concrete problems, then show the improved version.")},
	}
	return h
}

func (h *CodeHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.mode(""))
}

func (h *CodeHandler) mode(extra string) action {
	return func(ctx context.Context, req request) (string, error) {
		system := h.persona + "\n" + codeInstructions
		if extra != "" {
			system += "\n" + extra
		}
		if req.memCtx != "" {
			system += "\n\nRelevant context:\n" + req.memCtx
		}
		prompt := fmt.Sprintf("User: %s\n\n%s:", req.input, h.name)

		out, err := h.llm.Generate(ctx, llm.TierSmart, prompt, system)
		if err != nil {
			if errors.Is(err, llm.ErrTimeout) {
				return "Code generation timed out. Try a simpler request.", nil
			}
			return llm.Degraded(err), nil
		}
		return strings.TrimSpace(out), nil
	}
}
