package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dossier-ai/dossier-agent/internal/llm"
)

// SQLiteStore is a SQLite-backed transcript store. Threads survive
// process restarts, so a follow-up request can continue a
// conversation started before a redeploy.
type SQLiteStore struct {
	db *sql.DB

	// Per-thread locks serialize Seed/Append on the same thread id.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore opens (and migrates) a SQLite transcript store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls TEXT,
		tool_call_id TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_thread_seq ON messages(thread_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

// Exists reports whether a thread has any messages.
func (s *SQLiteStore) Exists(threadID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE thread_id = ?`, threadID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count messages: %w", err)
	}
	return count > 0, nil
}

// Messages returns the thread transcript in append order.
func (s *SQLiteStore) Messages(threadID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, role, content, tool_calls, tool_call_id, created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY seq ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var toolCalls, toolCallID sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &toolCalls, &toolCallID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls for message %s: %w", m.ID, err)
			}
		}
		if toolCallID.Valid {
			m.ToolCallID = toolCallID.String
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Seed writes the system message if the thread is empty.
func (s *SQLiteStore) Seed(threadID, systemContent string) error {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := s.Exists(threadID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.appendLocked(threadID, []Message{NewMessage(llm.Message{
		Role:    llm.RoleSystem,
		Content: systemContent,
	})})
	return err
}

// Append adds one turn of messages atomically and returns the updated
// transcript.
func (s *SQLiteStore) Append(threadID string, msgs []Message) ([]Message, error) {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return s.appendLocked(threadID, msgs)
}

func (s *SQLiteStore) appendLocked(threadID string, msgs []Message) ([]Message, error) {
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, threadID, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert thread: %w", err)
	}

	var seq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), -1) FROM messages WHERE thread_id = ?`, threadID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("read max seq: %w", err)
	}

	for _, m := range msgs {
		seq++

		var toolCalls any
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return nil, fmt.Errorf("encode tool calls: %w", err)
			}
			toolCalls = string(data)
		}

		_, err = tx.Exec(`
			INSERT INTO messages (id, thread_id, seq, role, content, tool_calls, tool_call_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, threadID, seq, m.Role, m.Content, toolCalls, m.ToolCallID, m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.Messages(threadID)
}

// Stats returns storage statistics.
func (s *SQLiteStore) Stats() map[string]any {
	var threadCount, msgCount int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM threads`).Scan(&threadCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount)

	return map[string]any{
		"threads":  threadCount,
		"messages": msgCount,
		"storage":  "sqlite",
	}
}
