package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/scheduler"
)

// counterPingInterval is the heartbeat cadence for counter streams. The
// transport does not always surface half-open connections promptly; a steady
// ping lets clients tell "idle but alive" from "silently dead".
const counterPingInterval = 30 * time.Second

// =============================================================================
// CounterHub - liveness layer over the registry for counter streams
// =============================================================================

// CounterHub specializes the registry for (edition, counter) scopes. Every
// subscriber immediately gets a connected snapshot with the current count,
// then a shared ticker pushes refreshed counts to every active counter.
type CounterHub struct {
	registry *Registry
	sched    scheduler.Scheduler
	log      zerolog.Logger

	cancel scheduler.CancelFunc
}

// NewCounterHub creates the hub. Call Start to begin heartbeats.
func NewCounterHub(registry *Registry, sched scheduler.Scheduler, log zerolog.Logger) *CounterHub {
	return &CounterHub{
		registry: registry,
		sched:    sched,
		log:      log.With().Str("component", "counter_hub").Logger(),
	}
}

// Start arms the shared heartbeat ticker.
func (h *CounterHub) Start() {
	if h.cancel != nil {
		return
	}
	h.cancel = h.sched.Repeat(counterPingInterval, h.pingAll)
}

// Stop cancels the heartbeat ticker.
func (h *CounterHub) Stop() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Subscribe registers a channel for a counter and pushes the initial
// connected snapshot before any real event can race it.
func (h *CounterHub) Subscribe(editionID, counterID int64, ch out.Channel) {
	scope := domain.CounterScope(editionID, counterID)
	h.registry.Register(scope, ch)

	if err := ch.Send(domain.NewCounterConnectedEvent(counterID, h.registry.Count(scope))); err != nil {
		h.registry.Unregister(scope, ch)
		return
	}

	h.log.Debug().
		Int64("edition_id", editionID).
		Int64("counter_id", counterID).
		Int("connections", h.registry.Count(scope)).
		Msg("counter client subscribed")
}

// Unsubscribe removes a channel from its counter scope.
func (h *CounterHub) Unsubscribe(editionID, counterID int64, ch out.Channel) {
	h.registry.Unregister(domain.CounterScope(editionID, counterID), ch)
}

// Count returns the live connection count for one counter.
func (h *CounterHub) Count(editionID, counterID int64) int {
	return h.registry.Count(domain.CounterScope(editionID, counterID))
}

// pingAll broadcasts a refreshed count to every active counter scope. Dead
// channels are unregistered by the broadcast itself.
func (h *CounterHub) pingAll() {
	for _, scope := range h.registry.Scopes() {
		if !scope.IsCounter() {
			continue
		}
		_, counterID, ok := domain.ParseCounterScope(scope)
		if !ok {
			continue
		}
		h.registry.Broadcast(scope, domain.NewCounterPingEvent(counterID, h.registry.Count(scope)))
	}
}
