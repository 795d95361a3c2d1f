// Package persistence implements the relational-store contracts consumed by
// the realtime layer, on PostgreSQL via sqlx.
package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
)

// ChatStoreAdapter implements out.ChatStore using PostgreSQL.
type ChatStoreAdapter struct {
	db *sqlx.DB
}

// NewChatStoreAdapter creates a new chat store adapter.
func NewChatStoreAdapter(db *sqlx.DB) *ChatStoreAdapter {
	return &ChatStoreAdapter{db: db}
}

// messageRow represents the database row.
type messageRow struct {
	ID             int64        `db:"id"`
	ConversationID int64        `db:"conversation_id"`
	SenderID       uuid.UUID    `db:"sender_id"`
	SenderName     string       `db:"sender_name"`
	Content        string       `db:"content"`
	CreatedAt      time.Time    `db:"created_at"`
	EditedAt       sql.NullTime `db:"edited_at"`
}

func (r *messageRow) toDomain() *domain.Message {
	m := &domain.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
	}
	if r.EditedAt.Valid {
		m.EditedAt = &r.EditedAt.Time
	}
	return m
}

// IsParticipant reports whether the user is an active conversation member.
func (a *ChatStoreAdapter) IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_members
			WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		)
	`
	var member bool
	if err := a.db.GetContext(ctx, &member, query, conversationID, userID); err != nil {
		return false, err
	}
	return member, nil
}

// Participants lists the active members of the conversation.
func (a *ChatStoreAdapter) Participants(ctx context.Context, conversationID int64) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM conversation_members
		WHERE conversation_id = $1 AND left_at IS NULL
	`
	var userIDs []uuid.UUID
	if err := a.db.SelectContext(ctx, &userIDs, query, conversationID); err != nil {
		return nil, err
	}
	return userIDs, nil
}

// MessagesSince returns non-deleted messages strictly newer than since, in
// creation-time ascending order.
func (a *ChatStoreAdapter) MessagesSince(ctx context.Context, conversationID int64, since time.Time) ([]*domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id,
		       COALESCE(u.display_name, '') AS sender_name,
		       m.content, m.created_at, m.edited_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		  AND m.created_at > $2
		  AND m.deleted_at IS NULL
		ORDER BY m.created_at ASC
	`
	var rows []messageRow
	if err := a.db.SelectContext(ctx, &rows, query, conversationID, since); err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toDomain())
	}
	return messages, nil
}

// MarkRead advances the per-user watermark; it never moves backwards.
func (a *ChatStoreAdapter) MarkRead(ctx context.Context, conversationID int64, userID uuid.UUID, messageID int64) error {
	query := `
		UPDATE conversation_members
		SET last_read_message_id = $3, last_read_at = NOW()
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		  AND COALESCE(last_read_message_id, 0) < $3
	`
	_, err := a.db.ExecContext(ctx, query, conversationID, userID, messageID)
	return err
}

// UnreadCount counts messages from others past the read watermark across all
// of the user's active conversations.
func (a *ChatStoreAdapter) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversation_members cm ON cm.conversation_id = m.conversation_id
		WHERE cm.user_id = $1
		  AND cm.left_at IS NULL
		  AND m.deleted_at IS NULL
		  AND m.sender_id <> $1
		  AND m.id > COALESCE(cm.last_read_message_id, 0)
	`
	var count int64
	if err := a.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, err
	}
	return count, nil
}

var _ out.ChatStore = (*ChatStoreAdapter)(nil)
