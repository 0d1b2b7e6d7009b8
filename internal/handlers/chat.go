package handlers

import (
	"context"
	"strings"
)

// ChatHandler answers general conversation through the reasoning pipeline.
type ChatHandler struct {
	brain Responder
}

func NewChatHandler(brain Responder) *ChatHandler {
	return &ChatHandler{brain: brain}
}

func (h *ChatHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.brain.Respond(ctx, input, memCtx), nil
}
