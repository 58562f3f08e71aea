// Package api implements the HTTP ingress for profile requests.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dossier-ai/dossier-agent/internal/agent"
	"github.com/dossier-ai/dossier-agent/internal/buildinfo"
	"github.com/dossier-ai/dossier-agent/internal/catalog"
	"github.com/dossier-ai/dossier-agent/internal/envelope"
	"github.com/dossier-ai/dossier-agent/internal/events"
	"github.com/dossier-ai/dossier-agent/internal/prompts"
	"github.com/dossier-ai/dossier-agent/internal/session"
	"github.com/dossier-ai/dossier-agent/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address    string
	port       int
	loop       *agent.Loop
	store      session.Store
	usageStore *usage.Store
	bus        *events.Bus
	tracker    *usage.Tracker
	logger     *slog.Logger
	server     *http.Server
}

// NewServer creates an API server. usageStore and bus may be nil.
func NewServer(address string, port int, loop *agent.Loop, store session.Store, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		loop:    loop,
		store:   store,
		tracker: usage.NewTracker(),
		logger:  logger,
	}
}

// SetUsageStore configures the persistent usage store for the stats
// endpoint.
func (s *Server) SetUsageStore(us *usage.Store) {
	s.usageStore = us
}

// SetEventBus configures the event bus for the watch endpoint.
func (s *Server) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// Handler builds the route table. Split from Start so tests can drive
// the mux through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Profile assembly
	mux.HandleFunc("POST /v1/profile", s.handleProfile)

	// Thread introspection
	mux.HandleFunc("GET /v1/threads/{id}", s.handleThreadGet)

	// Operational endpoints
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/sections", s.handleSections)
	mux.HandleFunc("GET /v1/events/watch", s.handleEventsWatch)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	// Exact-root match only. A bare "GET /" subtree pattern would
	// swallow method mismatches on the other routes, turning their
	// automatic 405 responses into the banner.
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. Blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Profile assembly holds the connection through the whole
		// research loop, which can run for minutes.
		WriteTimeout: 10 * time.Minute,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{
		"error":   errType,
		"message": message,
	}, s.logger)
}

// profileFields is the set of accepted request body fields. Anything
// else is logged and ignored rather than rejected, so callers can add
// fields ahead of a server upgrade.
var profileFields = map[string]bool{
	"name":          true,
	"country":       true,
	"designation":   true,
	"transactionId": true,
	"sections":      true,
}

// ProfileRequest is the decoded profile request body.
type ProfileRequest struct {
	Name          string
	Country       string
	Designation   string
	TransactionID string
	Sections      []string
}

// decodeProfileRequest validates the raw body fields. The required
// fields must be present, non-empty strings; designation may be a
// string or null; sections may be an array of strings. Invalid fields
// are reported together so the caller sees every problem at once.
func (s *Server) decodeProfileRequest(raw map[string]any) (*ProfileRequest, []string) {
	var invalid []string

	str := func(field string, required bool) string {
		v, ok := raw[field]
		if !ok || v == nil {
			if required {
				invalid = append(invalid, field)
			}
			return ""
		}
		sv, ok := v.(string)
		if !ok || (required && strings.TrimSpace(sv) == "") {
			invalid = append(invalid, field)
			return ""
		}
		return sv
	}

	req := &ProfileRequest{
		Name:          str("name", true),
		Country:       str("country", true),
		TransactionID: str("transactionId", true),
		Designation:   str("designation", false),
	}

	if v, ok := raw["sections"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			invalid = append(invalid, "sections")
		}
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				invalid = append(invalid, "sections")
				break
			}
			req.Sections = append(req.Sections, name)
		}
	}

	for field := range raw {
		if !profileFields[field] {
			s.logger.Warn("ignoring unexpected request field", "field", field)
		}
	}

	sort.Strings(invalid)
	return req, invalid
}

// handleProfile runs the full research loop for one profile and
// returns the assembled CV envelope.
//
// POST /v1/profile {"name": ..., "country": ..., "transactionId": ...}
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request", "request body is not valid JSON")
		return
	}

	req, invalid := s.decodeProfileRequest(raw)
	if len(invalid) > 0 {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed",
			"Missing or invalid required fields: "+strings.Join(invalid, ", "))
		return
	}

	sections := catalog.DefaultSet()
	if len(req.Sections) > 0 {
		sections = catalog.ParseNames(req.Sections)
	}

	profile := prompts.Profile{
		Name:        req.Name,
		Country:     req.Country,
		Designation: req.Designation,
	}
	humanPrompt, unknown := prompts.BuildHumanPrompt(profile, sections)
	if len(unknown) > 0 {
		s.logger.Warn("skipping unknown sections",
			"transaction_id", req.TransactionID,
			"sections", unknown,
		)
	}

	s.logger.Info("profile request",
		"transaction_id", req.TransactionID,
		"name", req.Name,
		"country", req.Country,
		"sections", len(sections),
	)
	s.bus.Publish(events.Event{
		Source: events.SourceAPI,
		Kind:   events.KindRequestStart,
		Data: map[string]any{
			"thread_id":    req.TransactionID,
			"profile_name": req.Name,
			"country":      req.Country,
		},
	})

	// Each request gets its own tracker so concurrent requests report
	// their own usage; totals merge into the server-wide tracker.
	tracker := usage.NewTracker()
	result, err := s.loop.Run(r.Context(), req.TransactionID, humanPrompt, tracker)
	s.tracker.Merge(tracker)
	if err != nil {
		s.logger.Error("profile assembly failed",
			"transaction_id", req.TransactionID,
			"error", err,
		)
		if errors.Is(err, agent.ErrMaxTurns) {
			s.errorResponse(w, http.StatusInternalServerError, "AI processing error",
				"research did not converge: "+err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "AI processing error", err.Error())
		return
	}

	env, err := envelope.Package(result.Answer, req.TransactionID)
	if err != nil {
		s.logger.Error("model output not packageable",
			"transaction_id", req.TransactionID,
			"error", err,
			"raw", truncate(result.Answer, 500),
		)
		s.errorResponse(w, http.StatusInternalServerError, "AI processing error",
			"model returned malformed CV content")
		return
	}

	s.logger.Info("profile assembled",
		"transaction_id", req.TransactionID,
		"turns", result.Turns,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"sections", len(env.InfoSectionList),
	)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, env, s.logger)
}

// handleThreadGet returns the stored transcript for a thread.
func (s *Server) handleThreadGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	exists, err := s.store.Exists(id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Storage error", err.Error())
		return
	}
	if !exists {
		s.errorResponse(w, http.StatusNotFound, "Not found", "thread not found: "+id)
		return
	}

	msgs, err := s.store.Messages(id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Storage error", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"thread_id": id,
		"messages":  msgs,
		"count":     len(msgs),
	}, s.logger)
}

// handleStats reports server-wide token usage alongside store
// statistics. When a usage store is configured, a 24 hour persisted
// summary is included too.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()

	resp := map[string]any{
		"session": snap,
		"store":   s.store.Stats(),
		"build":   buildinfo.Info(),
	}

	if s.usageStore != nil {
		now := time.Now().UTC()
		summary, err := s.usageStore.Summary(now.Add(-24*time.Hour), now)
		if err != nil {
			s.logger.Warn("usage summary failed", "error", err)
		} else {
			resp["last_24h"] = summary
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// handleSections lists the section catalog so callers can discover
// valid names for the request sections field.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	names := catalog.All()
	defaults := catalog.DefaultSet()

	defaultSet := make(map[catalog.Name]bool, len(defaults))
	for _, n := range defaults {
		defaultSet[n] = true
	}

	type sectionInfo struct {
		Name    string `json:"name"`
		Label   string `json:"label"`
		Fields  int    `json:"fields"`
		Default bool   `json:"default"`
	}

	list := make([]sectionInfo, 0, len(names))
	for _, n := range names {
		tpl, ok := catalog.Template(n)
		if !ok {
			continue
		}
		list = append(list, sectionInfo{
			Name:    string(n),
			Label:   tpl.Label,
			Fields:  len(tpl.Fields),
			Default: defaultSet[n],
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"sections": list,
		"count":    len(list),
	}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Dossier",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
