package search

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dossier-ai/dossier-agent/internal/tools"
)

type fakeProvider struct {
	results []Result
	err     error
	gotOpts Options
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	f.gotOpts = opts
	return f.results, f.err
}

type fakeExtractor struct {
	docs []Document
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, urls []string) ([]Document, error) {
	return f.docs, f.err
}

func TestRegisterToolsAdvertisesBoth(t *testing.T) {
	reg := tools.NewRegistry()
	RegisterTools(reg, &fakeProvider{}, &fakeExtractor{})

	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d tool definitions", len(defs))
	}
	if defs[0].Function.Name != SearchToolName || defs[1].Function.Name != ExtractToolName {
		t.Errorf("tool names = %s, %s", defs[0].Function.Name, defs[1].Function.Name)
	}
}

func TestSearchToolHandler(t *testing.T) {
	provider := &fakeProvider{results: []Result{{Title: "T", URL: "https://u.example"}}}
	handler := ToolHandler(provider)

	out, err := handler(context.Background(), map[string]any{
		"query":       "jane",
		"max_results": float64(3),
		"topic":       "news",
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if provider.gotOpts.MaxResults != 3 || provider.gotOpts.Topic != "news" {
		t.Errorf("opts = %+v", provider.gotOpts)
	}

	var results []Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if len(results) != 1 || results[0].Title != "T" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchToolHandlerRequiresQuery(t *testing.T) {
	handler := ToolHandler(&fakeProvider{})
	if _, err := handler(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestSearchToolHandlerNilProvider(t *testing.T) {
	handler := ToolHandler(nil)
	if _, err := handler(context.Background(), map[string]any{"query": "q"}); err == nil {
		t.Fatal("expected error when no provider is configured")
	}
}

func TestSearchToolHandlerPropagatesError(t *testing.T) {
	handler := ToolHandler(&fakeProvider{err: fmt.Errorf("rate limited")})
	if _, err := handler(context.Background(), map[string]any{"query": "q"}); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestExtractToolHandler(t *testing.T) {
	handler := ExtractToolHandler(&fakeExtractor{docs: []Document{{URL: "https://u.example", Content: "text"}}})

	out, err := handler(context.Background(), map[string]any{
		"urls": []any{"https://u.example"},
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	var docs []Document
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "text" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestExtractToolHandlerRequiresURLs(t *testing.T) {
	handler := ExtractToolHandler(&fakeExtractor{})

	if _, err := handler(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing urls")
	}
	if _, err := handler(context.Background(), map[string]any{"urls": []any{""}}); err == nil {
		t.Fatal("expected error for empty url strings")
	}
}

func TestFormatResults(t *testing.T) {
	out := FormatResults(nil, 5)
	if out != "No results found." {
		t.Errorf("empty = %q", out)
	}

	out = FormatResults([]Result{
		{Title: "A", URL: "https://a.example", Content: "snippet"},
		{Title: "B", URL: "https://b.example"},
	}, 1)
	if want := "1. A\n   https://a.example\n   snippet\n"; out != want {
		t.Errorf("formatted = %q, want %q", out, want)
	}
}
