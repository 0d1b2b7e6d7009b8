// Package handlers holds one handler per intent. Each handler owns an ordered
// keyword table that picks an action for the request and a default action
// used when no keyword group matches.
package handlers

import (
	"context"
	"strings"
)

const noInput = "Sorry, I didn't receive any input."

// Handler answers a single request. Errors are turned into text by the
// executor.
type Handler interface {
	Handle(ctx context.Context, input, memCtx string) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, input, memCtx string) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, input, memCtx string) (string, error) {
	return f(ctx, input, memCtx)
}

// Responder runs the reasoning pipeline; brain.Brain implements it.
type Responder interface {
	Respond(ctx context.Context, input, memCtx string) string
}

// request is what an action sees: the raw input, its trimmed lower-case form
// and the memory context.
type request struct {
	input  string
	lower  string
	memCtx string
}

type action func(ctx context.Context, req request) (string, error)

// route binds a keyword group to an action. With prefix set the keywords
// must start the request; otherwise they may appear anywhere.
type route struct {
	name     string
	keywords []string
	prefix   bool
	do       action
}

func (r route) matches(lower string) bool {
	for _, kw := range r.keywords {
		if r.prefix && strings.HasPrefix(lower, kw) {
			return true
		}
		if !r.prefix && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// table is an ordered keyword dispatch table; the first matching route wins.
type table []route

func (t table) match(lower string) (route, bool) {
	for _, r := range t {
		if r.matches(lower) {
			return r, true
		}
	}
	return route{}, false
}

func (t table) dispatch(ctx context.Context, input, memCtx string, fallback action) (string, error) {
	req := request{input: input, lower: strings.ToLower(strings.TrimSpace(input)), memCtx: memCtx}
	if r, ok := t.match(req.lower); ok {
		return r.do(ctx, req)
	}
	return fallback(ctx, req)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func stripWords(s string, words ...string) string {
	for _, w := range words {
		s = strings.ReplaceAll(s, w, "")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
