package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Message - chat message as exposed on the conversation stream
// =============================================================================

// Message is one chat message. The relational store owns the canonical row;
// this is the shape pushed to stream clients and returned by list endpoints.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversationId"`
	SenderID       uuid.UUID  `json:"senderId"`
	SenderName     string     `json:"senderName,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
	EditedAt       *time.Time `json:"editedAt,omitempty"`
}

// ConversationMember links a user to a conversation together with the
// per-user read watermark.
type ConversationMember struct {
	ConversationID    int64      `json:"conversationId"`
	UserID            uuid.UUID  `json:"userId"`
	JoinedAt          time.Time  `json:"joinedAt"`
	LeftAt            *time.Time `json:"leftAt,omitempty"`
	LastReadMessageID int64      `json:"lastReadMessageId"`
	LastReadAt        *time.Time `json:"lastReadAt,omitempty"`
}
