package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const searchTimeout = 30 * time.Second

var newsWords = []string{"news", "latest", "recent", "today", "current"}

// SearchResult is one web result.
type SearchResult struct {
	Title   string
	Snippet string
	URL     string
}

// SearchHandler queries the DuckDuckGo HTML endpoint and summarizes the
// results through the reasoning pipeline.
type SearchHandler struct {
	brain    Responder
	client   *http.Client
	endpoint string
	max      int
	routes   table
	log      zerolog.Logger
}

type SearchOptions struct {
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

func NewSearchHandler(brain Responder, opts SearchOptions) *SearchHandler {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://html.duckduckgo.com/html/"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: searchTimeout}
	}
	h := &SearchHandler{
		brain:    brain,
		client:   opts.HTTPClient,
		endpoint: opts.Endpoint,
		max:      opts.MaxResults,
		log:      logging.For("handlers").With().Str("handler", "search").Logger(),
	}
	h.routes = table{
		{name: "news", keywords: newsWords, do: h.search(true)},
	}
	return h
}

func (h *SearchHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.search(false))
}

func (h *SearchHandler) search(news bool) action {
	return func(ctx context.Context, req request) (string, error) {
		h.log.Info().Str("query", req.input).Bool("news", news).Msg("searching")

		results, err := h.Search(ctx, req.input, news)
		if err != nil {
			h.log.Warn().Err(err).Msg("search failed")
		}
		if len(results) == 0 {
			return fmt.Sprintf("No search results found for '%s'. This may be due to query phrasing, search engine limitations, or a temporary block. Try a different query or check for rate limits.", req.input), nil
		}

		formatted := make([]string, 0, len(results))
		for i, r := range results {
			formatted = append(formatted, fmt.Sprintf("%d. %s\n   %s\n   Source: %s", i+1, r.Title, r.Snippet, r.URL))
		}

		prompt := fmt.Sprintf(`Based on these search results, provide a clear and concise answer to the user's question.

User's question: "%s"

Search results:
%s

Provide a helpful summary. Cite sources when relevant. If the results don't fully answer the question, say so.`, req.input, strings.Join(formatted, "\n\n"))

		return h.brain.Respond(ctx, prompt, req.memCtx), nil
	}
}

// Search fetches up to the configured number of results. News queries are
// restricted to the past week.
func (h *SearchHandler) Search(ctx context.Context, query string, news bool) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	params := url.Values{"q": {query}}
	if news {
		params.Set("df", "w")
	}
	u := h.endpoint
	if strings.Contains(u, "?") {
		u += "&" + params.Encode()
	} else {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: HTTP %d", resp.StatusCode)
	}
	return ParseResults(io.LimitReader(resp.Body, 1<<20), h.max)
}

// ParseResults extracts result titles, snippets and target URLs from a
// DuckDuckGo HTML page.
func ParseResults(r io.Reader, max int) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, SearchResult{
			Title:   title,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			URL:     resolveRedirect(href),
		})
		return len(results) < max
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
