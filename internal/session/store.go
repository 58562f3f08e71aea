// Package session provides thread transcript storage. A thread is the
// append-only message history keyed by transaction id; follow-up
// requests with the same id continue the same conversation.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dossier-ai/dossier-agent/internal/llm"
)

// Message is one transcript entry.
type Message struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"` // system, user, assistant, tool
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewMessage creates a transcript entry from an llm message,
// assigning a time-ordered id.
func NewMessage(m llm.Message) Message {
	id, _ := uuid.NewV7()
	return Message{
		ID:         id.String(),
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		CreatedAt:  time.Now(),
	}
}

// LLMMessage converts a transcript entry back to the model wire form.
func (m Message) LLMMessage() llm.Message {
	return llm.Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}
}

// Store is the transcript storage interface.
type Store interface {
	// Exists reports whether a thread has any messages.
	Exists(threadID string) (bool, error)

	// Messages returns the thread transcript in append order. An
	// absent thread yields an empty slice, not an error.
	Messages(threadID string) ([]Message, error)

	// Seed writes the system message as the first entry of a thread.
	// Seeding a non-empty thread is a no-op.
	Seed(threadID, systemContent string) error

	// Append adds one logical turn of messages atomically and returns
	// the updated transcript.
	Append(threadID string, msgs []Message) ([]Message, error)

	// Stats returns storage statistics for observability.
	Stats() map[string]any

	// Close releases storage resources.
	Close() error
}

// MemoryStore is the in-memory Store used when no data directory is
// configured. Threads live for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]Message)}
}

// Exists reports whether a thread has any messages.
func (s *MemoryStore) Exists(threadID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads[threadID]) > 0, nil
}

// Messages returns a copy of the thread transcript.
func (s *MemoryStore) Messages(threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]Message, len(s.threads[threadID]))
	copy(msgs, s.threads[threadID])
	return msgs, nil
}

// Seed writes the system message if the thread is empty.
func (s *MemoryStore) Seed(threadID, systemContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.threads[threadID]) > 0 {
		return nil
	}
	s.threads[threadID] = []Message{NewMessage(llm.Message{
		Role:    llm.RoleSystem,
		Content: systemContent,
	})}
	return nil
}

// Append adds messages to a thread and returns the updated transcript.
func (s *MemoryStore) Append(threadID string, msgs []Message) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[threadID] = append(s.threads[threadID], msgs...)

	out := make([]Message, len(s.threads[threadID]))
	copy(out, s.threads[threadID])
	return out, nil
}

// Stats returns storage statistics.
func (s *MemoryStore) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totalMessages := 0
	for _, msgs := range s.threads {
		totalMessages += len(msgs)
	}
	return map[string]any{
		"threads":  len(s.threads),
		"messages": totalMessages,
		"storage":  "memory",
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
