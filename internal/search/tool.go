package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dossier-ai/dossier-agent/internal/tools"
)

// Tool names as advertised to the model.
const (
	SearchToolName  = "tavily_search"
	ExtractToolName = "tavily_extract"
)

// RegisterTools adds the search and extract tools to the registry.
func RegisterTools(reg *tools.Registry, provider Provider, extractor Extractor) {
	reg.Register(&tools.Tool{
		Name:        SearchToolName,
		Description: "Search the web for current information about a person, organization, or topic. Returns titles, URLs, and content snippets.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query string.",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return. Omit for default.",
				},
				"topic": map[string]any{
					"type":        "string",
					"description": "Search topic category (e.g., 'general', 'news'). Omit for default.",
				},
			},
			"required": []string{"query"},
		},
		Handler: ToolHandler(provider),
	})

	reg.Register(&tools.Tool{
		Name:        ExtractToolName,
		Description: "Extract the full readable content of one or more web pages by URL. Use after a search to read a promising source in detail.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"urls": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "The page URLs to extract.",
				},
			},
			"required": []string{"urls"},
		},
		Handler: ExtractToolHandler(extractor),
	})
}

// ToolHandler wraps a Provider as a tool handler.
func ToolHandler(provider Provider) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if provider == nil {
			return "", fmt.Errorf("%s: no search provider configured", SearchToolName)
		}
		query, _ := args["query"].(string)
		if query == "" {
			return "", fmt.Errorf("%s: query is required", SearchToolName)
		}

		opts := Options{}
		if n, ok := args["max_results"].(float64); ok && n > 0 {
			opts.MaxResults = int(n)
		}
		if topic, ok := args["topic"].(string); ok {
			opts.Topic = topic
		}

		results, err := provider.Search(ctx, query, opts)
		if err != nil {
			return "", err
		}

		// JSON keeps the structure intact for the model.
		out, err := json.Marshal(results)
		if err != nil {
			return FormatResults(results, len(results)), nil
		}
		return string(out), nil
	}
}

// ExtractToolHandler wraps an Extractor as a tool handler.
func ExtractToolHandler(extractor Extractor) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		rawURLs, ok := args["urls"].([]any)
		if !ok || len(rawURLs) == 0 {
			return "", fmt.Errorf("%s: urls is required", ExtractToolName)
		}

		urls := make([]string, 0, len(rawURLs))
		for _, u := range rawURLs {
			if s, ok := u.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		if len(urls) == 0 {
			return "", fmt.Errorf("%s: urls must be non-empty strings", ExtractToolName)
		}

		docs, err := extractor.Extract(ctx, urls)
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(docs)
		if err != nil {
			return "", fmt.Errorf("marshal documents: %w", err)
		}
		return string(out), nil
	}
}
