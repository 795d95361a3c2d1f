package http

import (
	"bufio"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/adapter/out/realtime"
	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/chat"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/live"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/metrics"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/response"
)

const (
	// Buffered events per connection. A full buffer drops, never blocks.
	streamBuffer = 16

	// Liveness ping on edition, conversation and user streams. Counter
	// streams are pinged centrally by the hub instead.
	streamPingInterval = 30 * time.Second
)

// =============================================================================
// StreamHandler - SSE endpoints
// =============================================================================

// StreamHandler serves the live event streams.
type StreamHandler struct {
	registry *realtime.Registry
	hub      *realtime.CounterHub
	chatSvc  *chat.Service
	liveSvc  *live.Service
	metrics  *metrics.StreamMetrics
	log      zerolog.Logger
}

// NewStreamHandler creates the SSE handler.
func NewStreamHandler(registry *realtime.Registry, hub *realtime.CounterHub,
	chatSvc *chat.Service, liveSvc *live.Service, m *metrics.StreamMetrics, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		hub:      hub,
		chatSvc:  chatSvc,
		liveSvc:  liveSvc,
		metrics:  m,
		log:      log.With().Str("handler", "stream").Logger(),
	}
}

// Register registers SSE routes.
func (h *StreamHandler) Register(api fiber.Router) {
	api.Get("/editions/:id/stream", h.EditionStream)
	api.Get("/editions/:id/counters/:counterId/stream", h.CounterStream)
	api.Get("/conversations/:id/stream", h.ConversationStream)
	api.Get("/me/stream", h.UserStream)
}

// EditionStream streams edition-wide ticketing events.
func (h *StreamHandler) EditionStream(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	editionID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	ch := realtime.NewStreamChannel(streamBuffer)
	scope := domain.EditionScope(editionID)
	h.registry.Register(scope, ch)

	initial := []*domain.StreamEvent{domain.NewConnectedEvent()}
	if stats := h.liveSvc.StatsSnapshot(c.Context(), editionID); stats != nil {
		initial = append(initial, domain.NewEditionEvent(domain.EventStatsUpdated, stats))
	}

	h.log.Info().Int64("edition_id", editionID).Msg("edition stream opened")
	h.serve(c, ch, initial, true, func() {
		h.registry.Unregister(scope, ch)
		h.log.Info().Int64("edition_id", editionID).Msg("edition stream closed")
	})
	return nil
}

// CounterStream streams live connection counts for an entry counter.
func (h *StreamHandler) CounterStream(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	editionID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}
	counterID, err := ParamInt64(c, "counterId")
	if err != nil {
		return response.AppError(c, err)
	}

	ch := realtime.NewStreamChannel(streamBuffer)
	// Subscribe emits the connected snapshot itself, with the count already
	// including this connection.
	h.hub.Subscribe(editionID, counterID, ch)

	h.log.Info().Int64("edition_id", editionID).Int64("counter_id", counterID).
		Msg("counter stream opened")
	h.serve(c, ch, nil, false, func() {
		h.hub.Unsubscribe(editionID, counterID, ch)
		h.log.Info().Int64("edition_id", editionID).Int64("counter_id", counterID).
			Msg("counter stream closed")
	})
	return nil
}

// ConversationStream streams new messages of one conversation.
func (h *StreamHandler) ConversationStream(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	conversationID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	ch := realtime.NewStreamChannel(streamBuffer)
	poller, err := h.chatSvc.OpenConversationStream(c.Context(), conversationID, userID, ch)
	if err != nil {
		ch.Close()
		return response.AppError(c, err)
	}

	h.log.Info().Int64("conversation_id", conversationID).Str("user_id", userID.String()).
		Msg("conversation stream opened")
	// The poller owns every event on this stream: messages and pings only,
	// no connected greeting.
	h.serve(c, ch, nil, false, func() {
		poller.Stop()
		h.log.Info().Int64("conversation_id", conversationID).Msg("conversation stream closed")
	})
	return nil
}

// UserStream streams account-level events, today the unread badge count.
func (h *StreamHandler) UserStream(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}

	ch := realtime.NewStreamChannel(streamBuffer)
	scope := domain.UserScope(userID)
	h.registry.Register(scope, ch)

	initial := []*domain.StreamEvent{domain.NewConnectedEvent()}
	if count, err := h.chatSvc.UnreadCount(c.Context(), userID); err == nil {
		initial = append(initial, domain.NewUnreadCountEvent(count))
	}

	h.log.Info().Str("user_id", userID.String()).Msg("user stream opened")
	h.serve(c, ch, initial, true, func() {
		h.registry.Unregister(scope, ch)
		h.log.Info().Str("user_id", userID.String()).Msg("user stream closed")
	})
	return nil
}

// serve writes SSE headers and pumps the channel into the response body until
// the client goes away or the channel closes. onExit always runs once.
func (h *StreamHandler) serve(c *fiber.Ctx, ch *realtime.StreamChannel,
	initial []*domain.StreamEvent, withPing bool, onExit func()) {

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // disable nginx buffering

	h.metrics.StreamOpened()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		var ping <-chan time.Time
		if withPing {
			ticker := time.NewTicker(streamPingInterval)
			defer ticker.Stop()
			ping = ticker.C
		}
		defer func() {
			ch.Close()
			onExit()
			h.metrics.StreamClosed()
		}()

		for _, event := range initial {
			if err := writeSSE(w, event); err != nil {
				return
			}
			h.metrics.EventSent()
		}

		for {
			select {
			case event, ok := <-ch.Events():
				if !ok {
					return
				}
				if err := writeSSE(w, event); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during write")
					return
				}
				h.metrics.EventSent()

			case <-ping:
				if err := writeSSE(w, domain.NewPingEvent()); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during ping")
					return
				}

			case <-ch.Done():
				return
			}
		}
	})
}

// writeSSE writes one data-only SSE frame. The event type travels inside the
// JSON payload, which is what the web client parses.
func writeSSE(w *bufio.Writer, event *domain.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	w.WriteString("data: ")
	w.Write(data)
	w.WriteString("\n\n")
	return w.Flush()
}
