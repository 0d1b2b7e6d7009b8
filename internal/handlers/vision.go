package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/jarvis/internal/llm"
	"github.com/tidwall/gjson"
)

const maxImageBytes = 20 << 20

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// VisionHandler describes image files through the vision model.
type VisionHandler struct {
	vision llm.ImageDescriber
	routes table
}

// NewVisionHandler accepts a nil describer when the backend has no vision
// model.
func NewVisionHandler(vision llm.ImageDescriber) *VisionHandler {
	h := &VisionHandler{vision: vision}
	h.routes = table{
		{name: "locate", keywords: []string{"find", "where", "locate", "is there"}, do: h.locate},
	}
	return h
}

func (h *VisionHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.describe)
}

func (h *VisionHandler) describe(ctx context.Context, req request) (string, error) {
	reply, done := h.ask(ctx, req.input)
	if done {
		return reply, nil
	}
	if desc := gjson.Get(reply, "description").String(); desc != "" {
		return desc, nil
	}
	return reply, nil
}

func (h *VisionHandler) locate(ctx context.Context, req request) (string, error) {
	reply, done := h.ask(ctx, req.input)
	if done {
		return reply, nil
	}
	if !gjson.Valid(reply) {
		return reply, nil
	}
	desc := gjson.Get(reply, "description").String()
	if desc == "" {
		desc = "unknown"
	}
	if !gjson.Get(reply, "found").Bool() {
		return "Couldn't find it: " + desc, nil
	}
	return "Found it: " + desc, nil
}

// ask sends the referenced image to the vision model. done reports that
// reply is already the final answer (missing image, no vision model or a
// backend failure).
func (h *VisionHandler) ask(ctx context.Context, input string) (reply string, done bool) {
	if h.vision == nil {
		return "Vision isn't available with the current model backend.", true
	}
	path := ImagePath(input)
	if path == "" {
		return "I can't capture the screen from here. Give me the path to an image file and I'll describe it.", true
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Sprintf("I couldn't find the image %s.", path), true
	}
	if info.Size() > maxImageBytes {
		return "That image is too large for me to look at (>20MB).", true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("I couldn't read the image %s.", path), true
	}

	prompt := fmt.Sprintf(`You are a visual assistant.
Task: %s
Look at the image carefully.
Reply ONLY as JSON (no other text):
{"found": true/false, "description": "what you see"}`, input)

	out, err := h.vision.Describe(ctx, prompt, [][]byte{data})
	if err != nil {
		return llm.Degraded(err), true
	}
	return cleanJSONReply(out), false
}

// ImagePath returns the first token of input that names an image file.
func ImagePath(input string) string {
	for _, tok := range strings.Fields(input) {
		tok = strings.Trim(tok, `"'()[],;`)
		tok = strings.TrimRight(tok, ".?!")
		ext := strings.ToLower(filepath.Ext(tok))
		for _, e := range imageExts {
			if ext == e {
				if p, err := expandPath(tok); err == nil {
					return p
				}
				return tok
			}
		}
	}
	return ""
}

// cleanJSONReply strips markdown fences around a JSON reply.
func cleanJSONReply(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		if candidate := s[start : end+1]; gjson.Valid(candidate) {
			return candidate
		}
	}
	return s
}
