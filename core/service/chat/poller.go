package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/scheduler"
)

const (
	// pollInterval bounds delivery latency for conversation streams. Polling
	// keeps the stream decoupled from the write path; chat does not promise
	// hard real-time delivery.
	pollInterval = 2 * time.Second

	// pingInterval keeps idle conversation streams observably alive.
	pingInterval = 30 * time.Second
)

// =============================================================================
// Poller - per-connection conversation delivery loop
// =============================================================================

// Poller owns one conversation stream: it polls the store for messages newer
// than its watermark and pushes them through the connection's channel, in
// creation-time order. One instance per open connection.
type Poller struct {
	store out.ChatStore
	sched scheduler.Scheduler
	log   zerolog.Logger

	conversationID int64
	ch             out.Channel

	mu        sync.Mutex
	watermark time.Time

	cancelPoll scheduler.CancelFunc
	cancelPing scheduler.CancelFunc
	stopOnce   sync.Once
}

// NewPoller creates a poller with its watermark at connection-open time.
func NewPoller(store out.ChatStore, sched scheduler.Scheduler, log zerolog.Logger,
	conversationID int64, ch out.Channel) *Poller {
	return &Poller{
		store:          store,
		sched:          sched,
		log:            log.With().Str("component", "conversation_poller").Int64("conversation_id", conversationID).Logger(),
		conversationID: conversationID,
		ch:             ch,
		watermark:      time.Now(),
	}
}

// Start arms the poll and ping timers. ctx outlives individual poll cycles
// and is only used for store reads.
func (p *Poller) Start(ctx context.Context) {
	p.cancelPoll = p.sched.Repeat(pollInterval, func() { p.poll(ctx) })
	p.cancelPing = p.sched.Repeat(pingInterval, p.ping)
}

// Stop cancels both timers. Called synchronously with transport closure so
// no timer survives a closed connection. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancelPoll != nil {
			p.cancelPoll()
		}
		if p.cancelPing != nil {
			p.cancelPing()
		}
	})
}

// Watermark returns the last delivered creation time.
func (p *Poller) Watermark() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	since := p.watermark
	p.mu.Unlock()

	messages, err := p.store.MessagesSince(ctx, p.conversationID, since)
	if err != nil {
		// Transient read failures must not drop a live viewer; skip the
		// cycle and retry on the next tick.
		p.log.Warn().Err(err).Msg("poll cycle skipped")
		return
	}

	for _, msg := range messages {
		if err := p.ch.Send(domain.NewMessageEvent(msg)); err != nil {
			p.log.Debug().Err(err).Msg("channel closed during delivery")
			p.Stop()
			return
		}
		p.mu.Lock()
		if msg.CreatedAt.After(p.watermark) {
			p.watermark = msg.CreatedAt
		}
		p.mu.Unlock()
	}
}

func (p *Poller) ping() {
	if err := p.ch.Send(domain.NewPingEvent()); err != nil {
		p.Stop()
	}
}
