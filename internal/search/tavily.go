package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dossier-ai/dossier-agent/internal/httpkit"
)

const tavilyBaseURL = "https://api.tavily.com"

// Tavily implements Provider and Extractor against the Tavily API.
type Tavily struct {
	apiKey     string
	baseURL    string
	maxResults int
	topic      string
	httpClient *http.Client
}

// NewTavily creates a Tavily client. maxResults and topic are the
// defaults applied when a query leaves Options blank.
func NewTavily(apiKey string, maxResults int, topic string) *Tavily {
	if maxResults <= 0 {
		maxResults = 5
	}
	if topic == "" {
		topic = "general"
	}
	return &Tavily{
		apiKey:     apiKey,
		baseURL:    tavilyBaseURL,
		maxResults: maxResults,
		topic:      topic,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(60 * time.Second)),
	}
}

func (t *Tavily) Name() string { return "tavily" }

// Configured reports whether an API key is set.
func (t *Tavily) Configured() bool { return t.apiKey != "" }

type tavilySearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search executes a web search query.
func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	req := tavilySearchRequest{
		Query:      query,
		MaxResults: t.maxResults,
		Topic:      t.topic,
	}
	if opts.MaxResults > 0 {
		req.MaxResults = opts.MaxResults
	}
	if opts.Topic != "" {
		req.Topic = opts.Topic
	}

	var resp tavilySearchResponse
	if err := t.post(ctx, "/search", req, &resp); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

type tavilyExtractRequest struct {
	URLs []string `json:"urls"`
}

type tavilyExtractResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// Extract fetches full page content for the given URLs. Pages Tavily
// fails on come back as documents with the failure noted in Content,
// so the model sees which sources were unreachable.
func (t *Tavily) Extract(ctx context.Context, urls []string) ([]Document, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("tavily extract: no urls given")
	}

	var resp tavilyExtractResponse
	if err := t.post(ctx, "/extract", tavilyExtractRequest{URLs: urls}, &resp); err != nil {
		return nil, fmt.Errorf("tavily extract: %w", err)
	}

	docs := make([]Document, 0, len(resp.Results)+len(resp.FailedResults))
	for _, r := range resp.Results {
		docs = append(docs, Document{URL: r.URL, Content: r.RawContent})
	}
	for _, f := range resp.FailedResults {
		docs = append(docs, Document{URL: f.URL, Content: "Extraction failed: " + f.Error})
	}
	return docs, nil
}

func (t *Tavily) post(ctx context.Context, path string, reqBody, respBody any) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
