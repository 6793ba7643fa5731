// Package history persists conversations and finalized chat messages to
// SQLite so a conversation can be resumed across runs.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"GameForge/internal/session"
)

// Store is the SQLite-backed transcript store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createConversations := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		started_at DATETIME
	);`

	createMessages := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		role TEXT,
		content TEXT,
		created_at DATETIME,
		phase TEXT,
		completed INTEGER,
		status_bullets TEXT,
		code_content TEXT,
		code_kind TEXT,
		suggestions TEXT,
		FOREIGN KEY(conversation_id) REFERENCES conversations(id)
	);`

	if _, err := db.Exec(createConversations); err != nil {
		return nil, fmt.Errorf("failed to create conversations table: %w", err)
	}
	if _, err := db.Exec(createMessages); err != nil {
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveConversation registers a conversation, keeping an existing row's
// start time on resume.
func (s *Store) SaveConversation(id string, startedAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO conversations (id, started_at) VALUES (?, ?)",
		id, startedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// SaveMessage persists one finalized chat message.
func (s *Store) SaveMessage(conversationID string, m session.ChatMessage) error {
	var phase string
	var completed bool
	var bullets []byte
	if m.Status != nil {
		phase = string(m.Status.Phase)
		completed = m.Status.Completed
		var err error
		bullets, err = json.Marshal(m.Status.Bullets)
		if err != nil {
			return fmt.Errorf("failed to encode status bullets: %w", err)
		}
	}

	var codeContent, codeKind string
	if m.Code != nil {
		codeContent = m.Code.Content
		codeKind = string(m.Code.Kind)
	}

	suggestions, err := json.Marshal(m.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO messages
		 (id, conversation_id, role, content, created_at, phase, completed, status_bullets, code_content, code_kind, suggestions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, conversationID, string(m.Role), m.Text, m.CreatedAt,
		phase, completed, string(bullets), codeContent, codeKind, string(suggestions),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	s.logger.Info("message saved", "conversation_id", conversationID, "message_id", m.ID, "role", m.Role)
	return nil
}

// LoadTranscript returns the conversation's messages in creation order.
func (s *Store) LoadTranscript(conversationID string) ([]session.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, created_at, phase, completed, status_bullets, code_content, code_kind, suggestions
		 FROM messages WHERE conversation_id = ? ORDER BY created_at`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []session.ChatMessage
	for rows.Next() {
		var m session.ChatMessage
		var role, phase, bullets, codeContent, codeKind, suggestions string
		var completed bool
		if err := rows.Scan(&m.ID, &role, &m.Text, &m.CreatedAt,
			&phase, &completed, &bullets, &codeContent, &codeKind, &suggestions); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = session.Role(role)

		if phase != "" {
			status := session.StatusSummary{Phase: session.Phase(phase), Completed: completed}
			if bullets != "" {
				if err := json.Unmarshal([]byte(bullets), &status.Bullets); err != nil {
					return nil, fmt.Errorf("failed to decode status bullets: %w", err)
				}
			}
			m.Status = &status
		}
		if codeContent != "" {
			m.Code = &session.CodeSnapshot{Content: codeContent, Kind: session.ArtifactKind(codeKind)}
		}
		if suggestions != "" {
			if err := json.Unmarshal([]byte(suggestions), &m.Suggestions); err != nil {
				return nil, fmt.Errorf("failed to decode suggestions: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return messages, nil
}
