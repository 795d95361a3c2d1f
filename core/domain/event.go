package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// StreamEvent - events pushed to connected clients over SSE
// =============================================================================

// EventType discriminates stream events on the wire.
type EventType string

const (
	// Shared across scopes
	EventConnected EventType = "connected"
	EventPing      EventType = "ping"

	// Edition scope
	EventEntryValidated   EventType = "entry-validated"
	EventEntryInvalidated EventType = "entry-invalidated"
	EventStatsUpdated     EventType = "stats-updated"

	// Conversation scope
	EventMessage EventType = "message"

	// User scope
	EventUnreadCount  EventType = "unread-count"
	EventNotification EventType = "notification"
)

// StreamEvent is a single event on a live stream. Every event carries the
// type discriminator; the remaining fields are populated per scope.
type StreamEvent struct {
	Type EventType `json:"type"`

	// Counter stream fields
	CounterID         int64 `json:"counterId,omitempty"`
	ActiveConnections int   `json:"activeConnections,omitempty"`

	// Conversation stream fields
	Message *Message `json:"message,omitempty"`

	// User scope fields
	UnreadCount *int64 `json:"unreadCount,omitempty"`

	// Free-form payload for edition events
	Data any `json:"data,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
}

// NewPingEvent returns a liveness ping carrying the current time.
func NewPingEvent() *StreamEvent {
	return &StreamEvent{
		Type:      EventPing,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewCounterConnectedEvent is the initial snapshot sent on counter stream open.
func NewCounterConnectedEvent(counterID int64, activeConnections int) *StreamEvent {
	return &StreamEvent{
		Type:              EventConnected,
		CounterID:         counterID,
		ActiveConnections: activeConnections,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
}

// NewCounterPingEvent is the periodic counter heartbeat with a refreshed count.
func NewCounterPingEvent(counterID int64, activeConnections int) *StreamEvent {
	return &StreamEvent{
		Type:              EventPing,
		CounterID:         counterID,
		ActiveConnections: activeConnections,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
}

// NewConnectedEvent is the initial event for edition and user streams.
func NewConnectedEvent() *StreamEvent {
	return &StreamEvent{
		Type:      EventConnected,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewMessageEvent wraps a chat message for the conversation stream.
func NewMessageEvent(m *Message) *StreamEvent {
	return &StreamEvent{
		Type:      EventMessage,
		Message:   m,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewUnreadCountEvent carries a recomputed unread total for one user.
func NewUnreadCountEvent(count int64) *StreamEvent {
	return &StreamEvent{
		Type:        EventUnreadCount,
		UnreadCount: &count,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// NewNotificationEvent delivers a notification over an open user stream
// instead of the push service.
func NewNotificationEvent(payload *PushPayload) *StreamEvent {
	return &StreamEvent{
		Type:      EventNotification,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewEditionEvent builds an edition-scope event with a free-form payload.
func NewEditionEvent(eventType EventType, data any) *StreamEvent {
	return &StreamEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// =============================================================================
// ScopeKey - addressing for the connection registry
// =============================================================================

// ScopeKey identifies one broadcast audience. It is only ever used as a map
// key and in log fields, never serialized to clients.
type ScopeKey string

const (
	scopeEdition = "edition"
	scopeCounter = "counter"
	scopeUser    = "user"
)

// EditionScope addresses every client watching an edition's live updates.
func EditionScope(editionID int64) ScopeKey {
	return ScopeKey(fmt.Sprintf("%s:%d", scopeEdition, editionID))
}

// CounterScope addresses clients watching one counter of one edition.
func CounterScope(editionID, counterID int64) ScopeKey {
	return ScopeKey(fmt.Sprintf("%s:%d:%d", scopeCounter, editionID, counterID))
}

// UserScope addresses every open stream belonging to one user.
func UserScope(userID uuid.UUID) ScopeKey {
	return ScopeKey(scopeUser + ":" + userID.String())
}

// IsCounter reports whether the key addresses a counter stream.
func (k ScopeKey) IsCounter() bool {
	return strings.HasPrefix(string(k), scopeCounter+":")
}

// ParseCounterScope extracts the edition and counter ids from a counter scope.
func ParseCounterScope(k ScopeKey) (editionID, counterID int64, ok bool) {
	parts := strings.Split(string(k), ":")
	if len(parts) != 3 || parts[0] != scopeCounter {
		return 0, 0, false
	}
	editionID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	counterID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return editionID, counterID, true
}
