package handlers

import (
	"context"
	"strings"
)

// TelephonyHandler acknowledges phone requests. No telephony backend is
// connected, so it explains what would happen instead of acting.
type TelephonyHandler struct {
	routes table
}

func NewTelephonyHandler() *TelephonyHandler {
	h := &TelephonyHandler{}
	h.routes = table{
		{name: "call", keywords: []string{"call", "dial", "ring"}, do: reply("I can't place calls yet. No phone service is connected.")},
		{name: "sms", keywords: []string{"sms", "text", "send message", "whatsapp"}, do: reply("I can't send messages yet. No phone service is connected.")},
		{name: "notification", keywords: []string{"notification"}, do: reply("I can't show phone notifications yet. No phone service is connected.")},
	}
	return h
}

func (h *TelephonyHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, reply("Phone features aren't connected yet. I can help you draft a message or remember who to call."))
}

func reply(text string) action {
	return func(context.Context, request) (string, error) { return text, nil }
}
