package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
)

// ChatStore is the narrow contract against the relational store that the
// realtime layer consumes. Message writes, conversation CRUD and permissions
// live with the ordinary request handlers, not here.
type ChatStore interface {
	// IsParticipant reports whether the user is an active member of the
	// conversation. Streams fail closed when this returns false.
	IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error)

	// Participants lists the active members of the conversation.
	Participants(ctx context.Context, conversationID int64) ([]uuid.UUID, error)

	// MessagesSince returns non-deleted messages with creation time strictly
	// greater than since, ordered by creation time ascending.
	MessagesSince(ctx context.Context, conversationID int64, since time.Time) ([]*domain.Message, error)

	// MarkRead advances the user's read watermark for the conversation. The
	// watermark never moves backwards.
	MarkRead(ctx context.Context, conversationID int64, userID uuid.UUID, messageID int64) error

	// UnreadCount counts messages past the read watermark across all of the
	// user's active conversations.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}
