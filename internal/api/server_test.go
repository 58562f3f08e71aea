package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dossier-ai/dossier-agent/internal/agent"
	"github.com/dossier-ai/dossier-agent/internal/envelope"
	"github.com/dossier-ai/dossier-agent/internal/llm"
	"github.com/dossier-ai/dossier-agent/internal/session"
	"github.com/dossier-ai/dossier-agent/internal/tools"
)

// stubLLM returns canned responses in sequence.
type stubLLM struct {
	responses []*llm.ChatResponse
	err       error
	calls     int
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message, tls []llm.Tool) (*llm.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.responses) {
		return nil, io.ErrUnexpectedEOF
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *stubLLM) Model() string { return "test-model" }

func (s *stubLLM) Ping(ctx context.Context) error { return nil }

const sectionAnswer = "```json\n" + `[
  {"label": "Main Particulars", "type": "TAB", "fields": [
    {"name": "Name", "value": "Jane Diplomat", "type": "TXT"}
  ]}
]` + "\n```"

func answer(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: llm.Message{Role: llm.RoleAssistant, Content: content},
		Model:   "test-model",
	}
}

func newTestServer(t *testing.T, client llm.Client) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewMemoryStore()
	loop := agent.New(logger, client, tools.NewRegistry(), store, nil, nil, agent.Options{})
	srv := NewServer("", 0, loop, store, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postProfile(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/profile", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/profile: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestProfileSuccess(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{responses: []*llm.ChatResponse{answer(sectionAnswer)}})

	resp := postProfile(t, ts, `{"name": "Jane Diplomat", "country": "Norway", "transactionId": "TXN-42"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var env envelope.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.TransactionID != "TXN-42" {
		t.Errorf("TransactionId = %q", env.TransactionID)
	}
	if len(env.InfoSectionList) != 1 {
		t.Fatalf("got %d sections", len(env.InfoSectionList))
	}
	if env.InfoSectionList[0].Label != "Main Particulars" {
		t.Errorf("section label = %q", env.InfoSectionList[0].Label)
	}
}

func TestProfileMissingFieldsListedTogether(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp := postProfile(t, ts, `{"name": "X"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Validation failed" {
		t.Errorf("error = %v", body["error"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "country") || !strings.Contains(msg, "transactionId") {
		t.Errorf("message should list both missing fields: %q", msg)
	}
	if strings.Contains(msg, "name") {
		t.Errorf("name was present, should not be listed: %q", msg)
	}
}

func TestProfileEmptyRequiredField(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp := postProfile(t, ts, `{"name": "  ", "country": "Norway", "transactionId": "TXN-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	msg, _ := decodeBody(t, resp)["message"].(string)
	if !strings.Contains(msg, "name") {
		t.Errorf("blank name not flagged: %q", msg)
	}
}

func TestProfileDesignationMustBeString(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp := postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T", "designation": 5}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	msg, _ := decodeBody(t, resp)["message"].(string)
	if !strings.Contains(msg, "designation") {
		t.Errorf("numeric designation not flagged: %q", msg)
	}
}

func TestProfileNullDesignationAccepted(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{responses: []*llm.ChatResponse{answer(sectionAnswer)}})

	resp := postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T", "designation": null}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestProfileUnknownFieldIgnored(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{responses: []*llm.ChatResponse{answer(sectionAnswer)}})

	resp := postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T", "extra": true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown field should not reject: status = %d", resp.StatusCode)
	}
}

func TestProfileInvalidJSON(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp := postProfile(t, ts, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestProfileMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp, err := http.Get(ts.URL + "/v1/profile")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestProfileModelFailure(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{err: io.ErrUnexpectedEOF})

	resp := postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decodeBody(t, resp)["error"] != "AI processing error" {
		t.Error("model failure should surface as AI processing error")
	}
}

func TestProfileMalformedModelOutput(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{responses: []*llm.ChatResponse{answer("I could not find anything.")}})

	resp := postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decodeBody(t, resp)["error"] != "AI processing error" {
		t.Error("malformed output should surface as AI processing error")
	}
}

func TestThreadTranscriptAfterRequest(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{responses: []*llm.ChatResponse{answer(sectionAnswer)}})

	postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "TXN-7"}`)

	resp, err := http.Get(ts.URL + "/v1/threads/TXN-7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	// system, user, assistant
	if count, _ := body["count"].(float64); count != 3 {
		t.Errorf("transcript length = %v", body["count"])
	}
}

func TestThreadNotFound(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp, err := http.Get(ts.URL + "/v1/threads/absent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSectionsCatalog(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp, err := http.Get(ts.URL + "/v1/sections")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if count, _ := body["count"].(float64); count != 7 {
		t.Errorf("catalog size = %v", body["count"])
	}
}

func TestRootBannerExactPathOnly(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	if decodeBody(t, resp)["name"] != "Dossier" {
		t.Error("unexpected banner body")
	}

	// The banner must not swallow other paths; unregistered GETs 404
	// and method mismatches on registered routes 405.
	resp, err = http.Get(ts.URL + "/no/such/route")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /no/such/route status = %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &stubLLM{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decodeBody(t, resp)["status"] != "healthy" {
		t.Error("unexpected health body")
	}
}

func TestStatsAccumulateAcrossRequests(t *testing.T) {
	stub := &stubLLM{responses: []*llm.ChatResponse{
		answer(sectionAnswer),
		answer(sectionAnswer),
	}}
	_, ts := newTestServer(t, stub)

	postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T1"}`)
	postProfile(t, ts, `{"name": "X", "country": "Y", "transactionId": "T2"}`)

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body := decodeBody(t, resp)
	sess, _ := body["session"].(map[string]any)
	if sess == nil {
		t.Fatal("missing session stats")
	}
	if reqs, _ := sess["total_requests"].(float64); reqs != 2 {
		t.Errorf("total_requests = %v", sess["total_requests"])
	}
}
