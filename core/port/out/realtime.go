package out

import (
	"errors"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
)

// ErrChannelClosed is returned by Send once the peer connection is gone.
// The registry treats it as routine and unregisters the channel.
var ErrChannelClosed = errors.New("stream channel closed")

// Channel is a one-way sink toward a single connected client. Send must be
// non-blocking: a stalled peer must never delay broadcast to its siblings.
type Channel interface {
	Send(event *domain.StreamEvent) error
	Close()
}

// RealtimePort is the per-scope connection registry. One instance per
// process, injected into every component that broadcasts.
type RealtimePort interface {
	// Register adds a channel under a scope. Idempotent per channel instance.
	Register(scope domain.ScopeKey, ch Channel)

	// Unregister removes a channel; removing the last channel of a scope
	// removes the scope entry itself. A no-op if the channel is absent.
	Unregister(scope domain.ScopeKey, ch Channel)

	// Broadcast delivers an event to every channel under the scope. A failed
	// delivery unregisters that channel and never aborts the others. An
	// unknown scope is a silent no-op: the audience may simply be offline.
	Broadcast(scope domain.ScopeKey, event *domain.StreamEvent)

	// Count returns the number of channels currently under the scope.
	Count(scope domain.ScopeKey) int
}
