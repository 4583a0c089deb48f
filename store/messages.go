package store

import (
	"context"
	"fmt"

	"github.com/NegusBas/In/models"
	"github.com/jmoiron/sqlx"
)

// ListMessages returns the messages of a conversation in chronological order.
// A conversation that does not exist yields models.ErrConversationNotFound,
// an existing one without messages yields an empty slice.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	messages := []models.Message{}
	query := s.db.Rebind(`
		SELECT id, conversation_id, content, role, "timestamp"
		FROM message
		WHERE conversation_id = ?
		ORDER BY "timestamp" ASC, id ASC`)

	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		exists, err := s.conversationExists(ctx, conn, conversationID)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrConversationNotFound
		}
		return conn.SelectContext(ctx, &messages, query, conversationID)
	})
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return messages, nil
}

// CreateMessage appends a message to a conversation and bumps the
// conversation's last_updated. Both writes commit together or not at all.
func (s *Store) CreateMessage(ctx context.Context, conversationID int64, content string, role models.Role) (models.Message, error) {
	if !role.Valid() {
		return models.Message{}, models.ErrInvalidRole
	}

	var msg models.Message
	insert := s.db.Rebind(`
		INSERT INTO message (conversation_id, content, role, "timestamp")
		VALUES (?, ?, ?, ?)
		RETURNING id, conversation_id, content, role, "timestamp"`)
	// last_updated only ever moves forward
	touch := s.db.Rebind(`
		UPDATE conversation
		SET last_updated = ?
		WHERE id = ? AND last_updated < ?`)

	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		exists, err := s.conversationExists(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrConversationNotFound
		}

		now := s.now()
		if err := tx.GetContext(ctx, &msg, insert, conversationID, content, string(role), now); err != nil {
			return translateError(err)
		}
		if _, err := tx.ExecContext(ctx, touch, now, conversationID, now); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("store: create message: %w", err)
	}
	return msg, nil
}
