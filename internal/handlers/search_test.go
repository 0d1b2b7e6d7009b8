package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go Documentation</a>
  <a class="result__snippet">The Go programming language docs.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/direct">Direct Link</a>
  <div class="result__snippet">Plain result.</div>
</div>
<div class="result"><span>no title here</span></div>
<div class="result">
  <a class="result__a" href="https://example.com/three">Third</a>
  <div class="result__snippet">Third snippet.</div>
</div>
</body></html>`

type searchServer struct {
	mu      sync.Mutex
	queries []string
	status  int
	body    string
}

func (s *searchServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.RawQuery)
	s.mu.Unlock()
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	fmt.Fprint(w, s.body)
}

func (s *searchServer) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

func TestParseResults(t *testing.T) {
	results, err := ParseResults(strings.NewReader(resultsPage), 5)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, SearchResult{Title: "Go Documentation", Snippet: "The Go programming language docs.", URL: "https://go.dev/doc/"}, results[0])
	assert.Equal(t, "https://example.com/direct", results[1].URL)
	assert.Equal(t, "Third", results[2].Title)

	limited, err := ParseResults(strings.NewReader(resultsPage), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSearchHandlerSummarizes(t *testing.T) {
	srv := &searchServer{body: resultsPage}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	brain := &echoResponder{answer: "Go is documented at go.dev."}
	h := NewSearchHandler(brain, SearchOptions{Endpoint: ts.URL, HTTPClient: ts.Client()})

	out, err := h.Handle(context.Background(), "search golang docs", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "Go is documented at go.dev.", out)
	assert.NotContains(t, srv.last(), "df=w")
	assert.Contains(t, srv.last(), "q=search+golang+docs")

	require.Len(t, brain.inputs, 1)
	assert.Contains(t, brain.inputs[0], `User's question: "search golang docs"`)
	assert.Contains(t, brain.inputs[0], "1. Go Documentation\n   The Go programming language docs.\n   Source: https://go.dev/doc/")
	assert.Equal(t, []string{"ctx"}, brain.contexts)
}

func TestSearchHandlerNewsRestrictsToPastWeek(t *testing.T) {
	srv := &searchServer{body: resultsPage}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	h := NewSearchHandler(&echoResponder{}, SearchOptions{Endpoint: ts.URL, HTTPClient: ts.Client()})
	_, err := h.Handle(context.Background(), "latest news on go releases", "")
	require.NoError(t, err)
	assert.Contains(t, srv.last(), "df=w")
}

func TestSearchHandlerNoResults(t *testing.T) {
	for name, srv := range map[string]*searchServer{
		"empty page": {body: "<html><body></body></html>"},
		"http error": {status: http.StatusForbidden},
	} {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(srv)
			defer ts.Close()

			brain := &echoResponder{}
			h := NewSearchHandler(brain, SearchOptions{Endpoint: ts.URL, HTTPClient: ts.Client()})
			out, err := h.Handle(context.Background(), "zzqx", "")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, "No search results found for 'zzqx'."), out)
			assert.Empty(t, brain.inputs)
		})
	}
}

func TestSearchReportsHTTPStatus(t *testing.T) {
	ts := httptest.NewServer(&searchServer{status: http.StatusServiceUnavailable})
	defer ts.Close()

	h := NewSearchHandler(&echoResponder{}, SearchOptions{Endpoint: ts.URL, HTTPClient: ts.Client()})
	_, err := h.Search(context.Background(), "x", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestResolveRedirect(t *testing.T) {
	assert.Equal(t, "https://go.dev/", resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F"))
	assert.Equal(t, "https://a.example/x", resolveRedirect("https://a.example/x"))
	assert.Equal(t, "/l/?uddg=", resolveRedirect("/l/?uddg="))
}
