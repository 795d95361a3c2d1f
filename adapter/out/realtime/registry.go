// Package realtime implements the in-memory live-connection layer: the
// per-scope connection registry, the counter stream hub and the stream
// channel handed to SSE handlers.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/metrics"
)

// =============================================================================
// Registry - out.RealtimePort implementation
// =============================================================================

// Registry fans events out to live channels grouped by scope. Constructed
// once per process and injected; tests build isolated instances.
type Registry struct {
	mu     sync.RWMutex
	scopes map[domain.ScopeKey]map[out.Channel]struct{}

	log     zerolog.Logger
	metrics *metrics.StreamMetrics
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger, m *metrics.StreamMetrics) *Registry {
	if m == nil {
		m = metrics.NewStreamMetrics()
	}
	return &Registry{
		scopes:  make(map[domain.ScopeKey]map[out.Channel]struct{}),
		log:     log.With().Str("component", "registry").Logger(),
		metrics: m,
	}
}

// Register adds a channel under a scope.
func (r *Registry) Register(scope domain.ScopeKey, ch out.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scopes[scope] == nil {
		r.scopes[scope] = make(map[out.Channel]struct{})
	}
	r.scopes[scope][ch] = struct{}{}

	r.log.Debug().
		Str("scope", string(scope)).
		Int("connections", len(r.scopes[scope])).
		Msg("channel registered")
}

// Unregister removes a channel; an absent channel is a no-op. The scope entry
// is dropped together with its last channel so empty sets never accumulate.
func (r *Registry) Unregister(scope domain.ScopeKey, ch out.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(scope, ch)
}

func (r *Registry) unregisterLocked(scope domain.ScopeKey, ch out.Channel) {
	channels, ok := r.scopes[scope]
	if !ok {
		return
	}
	if _, ok := channels[ch]; !ok {
		return
	}

	delete(channels, ch)
	if len(channels) == 0 {
		delete(r.scopes, scope)
	}

	r.log.Debug().
		Str("scope", string(scope)).
		Int("connections", len(channels)).
		Msg("channel unregistered")
}

// Broadcast delivers an event to every channel under the scope. Channels are
// independent network peers: a failed send unregisters that channel and the
// loop carries on. Broadcasting to an unknown scope is a silent no-op.
func (r *Registry) Broadcast(scope domain.ScopeKey, event *domain.StreamEvent) {
	r.mu.RLock()
	channels, ok := r.scopes[scope]
	if !ok || len(channels) == 0 {
		r.mu.RUnlock()
		return
	}

	// Copy so the lock is not held across sends.
	chList := make([]out.Channel, 0, len(channels))
	for ch := range channels {
		chList = append(chList, ch)
	}
	r.mu.RUnlock()

	var failed []out.Channel
	for _, ch := range chList {
		if err := ch.Send(event); err != nil {
			r.metrics.EventDropped()
			failed = append(failed, ch)
			continue
		}
		r.metrics.EventSent()
	}

	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	for _, ch := range failed {
		r.unregisterLocked(scope, ch)
	}
	r.mu.Unlock()

	r.log.Debug().
		Str("scope", string(scope)).
		Str("event_type", string(event.Type)).
		Int("removed", len(failed)).
		Msg("dropped dead channels during broadcast")
}

// Count returns the current channel count for a scope.
func (r *Registry) Count(scope domain.ScopeKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scopes[scope])
}

// Scopes returns a snapshot of every scope with at least one channel.
func (r *Registry) Scopes() []domain.ScopeKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]domain.ScopeKey, 0, len(r.scopes))
	for scope := range r.scopes {
		keys = append(keys, scope)
	}
	return keys
}

var _ out.RealtimePort = (*Registry)(nil)
