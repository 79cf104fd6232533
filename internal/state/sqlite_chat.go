package state

import (
	"fmt"
	"time"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// AppendChatMessage adds one message to a workspace's transcript.
func (s *SQLiteStore) AppendChatMessage(msg *core.ChatMessage) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if msg.ID == "" {
		msg.ID = generateID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, workspace_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.WorkspaceID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns a workspace's transcript in order.
func (s *SQLiteStore) ListChatMessages(workspaceID string) ([]*core.ChatMessage, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_id, role, content, created_at
		FROM chat_messages WHERE workspace_id = ? ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var out []*core.ChatMessage
	for rows.Next() {
		var m core.ChatMessage
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
