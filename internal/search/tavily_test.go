package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testTavily(t *testing.T, handler http.HandlerFunc) (*Tavily, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	tv := NewTavily("tvly-test", 5, "general")
	tv.baseURL = srv.URL
	return tv, srv.Close
}

func TestTavilySearch(t *testing.T) {
	var gotReq tavilySearchRequest
	tv, closeFn := testTavily(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tvly-test" {
			t.Errorf("auth = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)

		io.WriteString(w, `{"results":[
			{"title":"Jane Diplomat - Wikipedia","url":"https://en.wikipedia.org/wiki/Jane","content":"Jane is...","score":0.92},
			{"title":"Jane on LinkedIn","url":"https://linkedin.com/in/jane","content":"Profile","score":0.85}
		]}`)
	})
	defer closeFn()

	results, err := tv.Search(context.Background(), "Jane Diplomat Atlantis", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotReq.MaxResults != 5 || gotReq.Topic != "general" {
		t.Errorf("defaults not applied: %+v", gotReq)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Title != "Jane Diplomat - Wikipedia" || results[0].Score != 0.92 {
		t.Errorf("result[0] = %+v", results[0])
	}
}

func TestTavilySearchOptionOverrides(t *testing.T) {
	var gotReq tavilySearchRequest
	tv, closeFn := testTavily(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		io.WriteString(w, `{"results":[]}`)
	})
	defer closeFn()

	if _, err := tv.Search(context.Background(), "q", Options{MaxResults: 3, Topic: "news"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotReq.MaxResults != 3 || gotReq.Topic != "news" {
		t.Errorf("overrides not applied: %+v", gotReq)
	}
}

func TestTavilySearchHTTPError(t *testing.T) {
	tv, closeFn := testTavily(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	defer closeFn()

	if _, err := tv.Search(context.Background(), "q", Options{}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestTavilyExtractIncludesFailures(t *testing.T) {
	tv, closeFn := testTavily(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{
			"results":[{"url":"https://a.example","raw_content":"page text"}],
			"failed_results":[{"url":"https://b.example","error":"timeout"}]
		}`)
	})
	defer closeFn()

	docs, err := tv.Extract(context.Background(), []string{"https://a.example", "https://b.example"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs", len(docs))
	}
	if docs[0].Content != "page text" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Content != "Extraction failed: timeout" {
		t.Errorf("docs[1] = %+v", docs[1])
	}
}

func TestTavilyExtractEmptyURLs(t *testing.T) {
	tv := NewTavily("k", 5, "general")
	if _, err := tv.Extract(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty urls")
	}
}
