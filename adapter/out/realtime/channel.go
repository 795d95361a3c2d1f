package realtime

import (
	"sync"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
)

// =============================================================================
// StreamChannel - buffered channel bound to one SSE connection
// =============================================================================

// StreamChannel is the out.Channel handed to an SSE handler. Events are
// buffered; the handler goroutine drains Events and writes them to the wire.
// Closing the transport closes the channel and vice versa: the handler's
// deferred Close and the registry's error-driven unregister meet in the
// middle, so no orphaned entry survives either direction.
type StreamChannel struct {
	events chan *domain.StreamEvent
	done   chan struct{}
	once   sync.Once
}

// NewStreamChannel creates a channel with the given event buffer.
func NewStreamChannel(buffer int) *StreamChannel {
	if buffer <= 0 {
		buffer = 256
	}
	return &StreamChannel{
		events: make(chan *domain.StreamEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Send enqueues an event without blocking. A closed channel returns
// out.ErrChannelClosed; a full buffer drops the event (backpressure) and
// keeps the connection.
func (c *StreamChannel) Send(event *domain.StreamEvent) error {
	select {
	case <-c.done:
		return out.ErrChannelClosed
	default:
	}

	select {
	case c.events <- event:
		return nil
	case <-c.done:
		return out.ErrChannelClosed
	default:
		// Buffer full: the peer is stalled. Dropping beats blocking the
		// broadcaster; the next heartbeat re-establishes liveness.
		return nil
	}
}

// Events is drained by the owning connection handler.
func (c *StreamChannel) Events() <-chan *domain.StreamEvent {
	return c.events
}

// Done closes when the channel is closed.
func (c *StreamChannel) Done() <-chan struct{} {
	return c.done
}

// Close marks the channel dead. Idempotent.
func (c *StreamChannel) Close() {
	c.once.Do(func() { close(c.done) })
}

var _ out.Channel = (*StreamChannel)(nil)
