// Package search provides the web research backends the agent uses:
// a search provider and a page content extractor, plus the tool
// adapters that expose them to the model.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Result is a single search result.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// MaxResults caps the number of results. Providers may return
	// fewer. Zero means provider default.
	MaxResults int `json:"max_results,omitempty"`

	// Topic filters results by category (e.g. "general", "news").
	Topic string `json:"topic,omitempty"`
}

// Provider is the interface search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "tavily").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Document is the extracted content of a single web page.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Extractor fetches full page content for a set of URLs.
type Extractor interface {
	Extract(ctx context.Context, urls []string) ([]Document, error)
}

// FormatResults renders results as readable text, capped at limit.
// Used as a fallback when JSON marshaling is not wanted.
func FormatResults(results []Result, limit int) string {
	if len(results) == 0 {
		return "No results found."
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Content != "" {
			fmt.Fprintf(&b, "   %s\n", r.Content)
		}
	}
	return b.String()
}
