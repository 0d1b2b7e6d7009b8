package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/jarvis/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0644))
	return path
}

func TestVisionWithoutModel(t *testing.T) {
	out, err := NewVisionHandler(nil).Handle(context.Background(), "describe /tmp/a.png", "")
	require.NoError(t, err)
	assert.Equal(t, "Vision isn't available with the current model backend.", out)
}

func TestVisionNeedsImagePath(t *testing.T) {
	h := NewVisionHandler(llmtest.Returning("{}"))
	out, _ := h.Handle(context.Background(), "what's on my screen", "")
	assert.Equal(t, "I can't capture the screen from here. Give me the path to an image file and I'll describe it.", out)

	missing := filepath.Join(t.TempDir(), "gone.jpg")
	out, _ = h.Handle(context.Background(), "describe "+missing, "")
	assert.Equal(t, "I couldn't find the image "+missing+".", out)
}

func TestVisionDescribe(t *testing.T) {
	img := writeImage(t)
	var gotPrompt string
	var gotImages [][]byte
	fake := &llmtest.Fake{DescribeFn: func(prompt string, images [][]byte) (string, error) {
		gotPrompt, gotImages = prompt, images
		return "```json\n{\"found\": true, \"description\": \"A terminal window.\"}\n```", nil
	}}
	h := NewVisionHandler(fake)

	out, err := h.Handle(context.Background(), "describe "+img, "")
	require.NoError(t, err)
	assert.Equal(t, "A terminal window.", out)
	assert.Contains(t, gotPrompt, "Task: describe "+img)
	require.Len(t, gotImages, 1)
	assert.Equal(t, []byte("\x89PNG fake"), gotImages[0])
}

func TestVisionLocate(t *testing.T) {
	img := writeImage(t)
	reply := `{"found": false, "description": "no red button visible"}`
	fake := &llmtest.Fake{DescribeFn: func(string, [][]byte) (string, error) { return reply, nil }}
	h := NewVisionHandler(fake)

	out, _ := h.Handle(context.Background(), "find the red button in "+img, "")
	assert.Equal(t, "Couldn't find it: no red button visible", out)

	reply = `Sure! {"found": true, "description": "top right corner"}`
	out, _ = h.Handle(context.Background(), "where is the close button in "+img+"?", "")
	assert.Equal(t, "Found it: top right corner", out)

	reply = "plain prose answer"
	out, _ = h.Handle(context.Background(), "is there a cat in "+img, "")
	assert.Equal(t, "plain prose answer", out)
}

func TestVisionBackendFailure(t *testing.T) {
	img := writeImage(t)
	fake := &llmtest.Fake{DescribeFn: func(string, [][]byte) (string, error) { return "", errors.New("model crashed") }}
	out, err := NewVisionHandler(fake).Handle(context.Background(), "describe "+img, "")
	require.NoError(t, err)
	assert.Contains(t, out, "model crashed")
}

func TestImagePath(t *testing.T) {
	abs, err := filepath.Abs("photo.JPG")
	require.NoError(t, err)
	assert.Equal(t, abs, ImagePath(`look at "photo.JPG", please`))
	assert.Equal(t, "", ImagePath("describe my screen"))
}
