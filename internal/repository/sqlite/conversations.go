package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/conversation"
)

// GetConversation returns a tenant's conversation.
func (s *Store) GetConversation(ctx context.Context, tenantID, id string) (conversation.Conversation, error) {
	var c conversation.Conversation
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, department_id, user_id, title, message_count, created_at, updated_at
		FROM conversations WHERE id = ? AND tenant_id = ?
	`, id, tenantID).Scan(&c.ID, &c.TenantID, &c.DepartmentID, &c.UserID, &c.Title, &c.MessageCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.Conversation{}, domain.ErrConversationNotFound
	}
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("getting conversation %s: %w", id, err)
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// SaveExchange writes the conversation (when new), both messages, the message counter
// and the optional approval in one transaction.
func (s *Store) SaveExchange(ctx context.Context, ex conversation.Exchange) error {
	conv := ex.Conversation
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if ex.NewConversation {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversations (id, tenant_id, department_id, user_id, title, message_count, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, 0, ?, ?)
			`, conv.ID, conv.TenantID, conv.DepartmentID, conv.UserID, conv.Title,
				formatTime(conv.CreatedAt), formatTime(conv.CreatedAt)); err != nil {
				return fmt.Errorf("creating conversation: %w", err)
			}
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT message_count FROM conversations WHERE id = ?`, conv.ID).Scan(&count); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrConversationNotFound
			}
			return fmt.Errorf("reading message count: %w", err)
		}

		if err := insertMessage(ctx, tx, ex.User, count+1); err != nil {
			return err
		}
		if err := insertMessage(ctx, tx, ex.Assistant, count+2); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations SET message_count = message_count + 2, updated_at = ? WHERE id = ?
		`, formatTime(ex.Assistant.CreatedAt), conv.ID); err != nil {
			return fmt.Errorf("updating conversation: %w", err)
		}

		if ex.Approval != nil {
			if err := insertApproval(ctx, tx, ex.Approval); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMessages returns a conversation's messages in order.
func (s *Store) ListMessages(ctx context.Context, tenantID, conversationID string) ([]conversation.Message, error) {
	if _, err := s.GetConversation(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, COALESCE(confidence, 0), model_used,
		       tokens_input, tokens_output, latency_ms, sources, status, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		var m conversation.Message
		var sources, status, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Confidence, &m.ModelUsed,
			&m.TokensInput, &m.TokensOutput, &m.LatencyMs, &sources, &status, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources of %s: %w", m.ID, err)
		}
		m.Status = conversation.Status(status)
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *conversation.Message, seq int) error {
	sources := m.Sources
	if sources == nil {
		sources = []conversation.Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}

	var confidence any
	if m.Role == domain.RoleAssistant {
		confidence = m.Confidence
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, confidence, model_used,
		                      tokens_input, tokens_output, latency_ms, sources, status, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.Role, m.Content, confidence, m.ModelUsed,
		m.TokensInput, m.TokensOutput, m.LatencyMs, string(raw), string(m.Status), formatTime(m.CreatedAt), seq); err != nil {
		return fmt.Errorf("inserting %s message: %w", m.Role, err)
	}
	return nil
}
