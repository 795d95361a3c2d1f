// Package metrics provides stream and dispatch monitoring counters.
package metrics

import (
	"sync/atomic"
)

// =============================================================================
// Stream Metrics
// =============================================================================

// StreamMetrics tracks live-stream activity. All counters are atomic; a
// single instance is shared by the registry, hubs and handlers.
type StreamMetrics struct {
	streamsOpened int64
	streamsClosed int64
	eventsSent    int64
	eventsDropped int64

	pushSent   int64
	pushFailed int64
}

// NewStreamMetrics creates a zeroed metrics instance.
func NewStreamMetrics() *StreamMetrics {
	return &StreamMetrics{}
}

func (m *StreamMetrics) StreamOpened() { atomic.AddInt64(&m.streamsOpened, 1) }
func (m *StreamMetrics) StreamClosed() { atomic.AddInt64(&m.streamsClosed, 1) }
func (m *StreamMetrics) EventSent()    { atomic.AddInt64(&m.eventsSent, 1) }
func (m *StreamMetrics) EventDropped() { atomic.AddInt64(&m.eventsDropped, 1) }
func (m *StreamMetrics) PushSent()     { atomic.AddInt64(&m.pushSent, 1) }
func (m *StreamMetrics) PushFailed()   { atomic.AddInt64(&m.pushFailed, 1) }

// ActiveStreams returns opened minus closed.
func (m *StreamMetrics) ActiveStreams() int64 {
	return atomic.LoadInt64(&m.streamsOpened) - atomic.LoadInt64(&m.streamsClosed)
}

// Snapshot returns the counters for the health endpoint.
func (m *StreamMetrics) Snapshot() map[string]any {
	return map[string]any{
		"streams_opened": atomic.LoadInt64(&m.streamsOpened),
		"streams_closed": atomic.LoadInt64(&m.streamsClosed),
		"streams_active": m.ActiveStreams(),
		"events_sent":    atomic.LoadInt64(&m.eventsSent),
		"events_dropped": atomic.LoadInt64(&m.eventsDropped),
		"push_sent":      atomic.LoadInt64(&m.pushSent),
		"push_failed":    atomic.LoadInt64(&m.pushFailed),
	}
}
