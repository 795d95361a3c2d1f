// Package chat implements the realtime side of conversations: typing
// presence, per-connection message polling and unread-count notification.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// typingWindow must exceed the client's 3-second "stopped typing" idle
// timeout so jitter never shows an actively typing user as stopped.
const typingWindow = 3 * time.Second

// =============================================================================
// PresenceTracker - short-lived "user is typing" facts
// =============================================================================

// PresenceTracker holds typing state per conversation with automatic expiry.
// Entries past the liveness window are invisible to reads even before the
// lazy sweep physically removes them.
type PresenceTracker struct {
	mu     sync.Mutex
	typing map[int64]map[uuid.UUID]time.Time

	window time.Duration
	now    func() time.Time
}

// NewPresenceTracker creates a tracker with the standard liveness window.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		typing: make(map[int64]map[uuid.UUID]time.Time),
		window: typingWindow,
		now:    time.Now,
	}
}

// SetTyping inserts or refreshes a typing entry, or deletes it outright when
// the client reports it stopped.
func (p *PresenceTracker) SetTyping(userID uuid.UUID, conversationID int64, isTyping bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !isTyping {
		if users, ok := p.typing[conversationID]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(p.typing, conversationID)
			}
		}
		return
	}

	if p.typing[conversationID] == nil {
		p.typing[conversationID] = make(map[uuid.UUID]time.Time)
	}
	p.typing[conversationID][userID] = p.now()
}

// ActiveTypers returns users whose entries are within the liveness window.
// Expired entries encountered on the way are swept. Never errors; an idle
// conversation yields an empty slice.
func (p *PresenceTracker) ActiveTypers(conversationID int64) []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.typing[conversationID]
	if !ok {
		return nil
	}

	now := p.now()
	active := make([]uuid.UUID, 0, len(users))
	for userID, updatedAt := range users {
		if now.Sub(updatedAt) > p.window {
			delete(users, userID)
			continue
		}
		active = append(active, userID)
	}

	if len(users) == 0 {
		delete(p.typing, conversationID)
	}
	return active
}
