package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NegusBas/In/models"
	"github.com/jmoiron/sqlx"
)

const listConversationsQuery = `
SELECT c.id, c.title, c.temperature, c.last_updated,
       m.id AS message_id, m.content AS message_content,
       m.role AS message_role, m."timestamp" AS message_timestamp
FROM conversation c
LEFT JOIN message m ON m.conversation_id = c.id
ORDER BY c.last_updated DESC, c.id DESC, m."timestamp" ASC, m.id ASC`

// conversationRow is one row of the conversation/message join.
// Message columns are NULL for conversations without messages.
type conversationRow struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Temperature float64   `db:"temperature"`
	LastUpdated time.Time `db:"last_updated"`

	MessageID        sql.NullInt64  `db:"message_id"`
	MessageContent   sql.NullString `db:"message_content"`
	MessageRole      sql.NullString `db:"message_role"`
	MessageTimestamp sql.NullTime   `db:"message_timestamp"`
}

// ListConversationsWithMessages returns every conversation, most recently
// updated first, each carrying its messages in chronological order.
func (s *Store) ListConversationsWithMessages(ctx context.Context) ([]models.Conversation, error) {
	var rows []conversationRow
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &rows, listConversationsQuery)
	})
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	return groupConversations(rows), nil
}

// groupConversations folds the flat join back into nested conversations,
// keeping the order in which each conversation first appears.
func groupConversations(rows []conversationRow) []models.Conversation {
	conversations := []models.Conversation{}
	index := make(map[int64]int)
	for _, row := range rows {
		i, ok := index[row.ID]
		if !ok {
			i = len(conversations)
			index[row.ID] = i
			conversations = append(conversations, models.Conversation{
				ID:          row.ID,
				Title:       row.Title,
				Temperature: row.Temperature,
				LastUpdated: row.LastUpdated,
				Messages:    []models.Message{},
			})
		}
		if !row.MessageID.Valid {
			continue
		}
		conversations[i].Messages = append(conversations[i].Messages, models.Message{
			ID:             row.MessageID.Int64,
			ConversationID: row.ID,
			Content:        row.MessageContent.String,
			Role:           models.Role(row.MessageRole.String),
			Timestamp:      row.MessageTimestamp.Time,
		})
	}
	return conversations
}

// CreateConversation persists a new conversation stamped with the current time.
func (s *Store) CreateConversation(ctx context.Context, title string, temperature float64) (models.Conversation, error) {
	if err := models.ValidateTemperature(temperature); err != nil {
		return models.Conversation{}, err
	}

	var conv models.Conversation
	query := s.db.Rebind(`
		INSERT INTO conversation (title, temperature, last_updated)
		VALUES (?, ?, ?)
		RETURNING id, title, temperature, last_updated`)
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &conv, query, title, temperature, s.now())
	})
	if err != nil {
		return models.Conversation{}, fmt.Errorf("store: create conversation: %w", err)
	}
	conv.Messages = []models.Message{}
	return conv, nil
}

// ConversationExists reports whether a conversation with the given id is stored.
func (s *Store) ConversationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		exists, err = s.conversationExists(ctx, conn, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("store: conversation exists: %w", err)
	}
	return exists, nil
}

func (s *Store) conversationExists(ctx context.Context, q sqlx.QueryerContext, id int64) (bool, error) {
	var found int64
	err := sqlx.GetContext(ctx, q, &found, s.db.Rebind(`SELECT id FROM conversation WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
