package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/adapter/out/realtime"
	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/live"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/notification"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/response"
)

// =============================================================================
// LiveHandler - emit endpoints called by the CRUD layer
// =============================================================================

// LiveHandler exposes the endpoints the ticketing and messaging CRUD layer
// calls after committing a change, so connected clients hear about it.
type LiveHandler struct {
	liveSvc    *live.Service
	registry   *realtime.Registry
	dispatcher *notification.Dispatcher
	log        zerolog.Logger
}

// NewLiveHandler creates the live emit handler.
func NewLiveHandler(liveSvc *live.Service, registry *realtime.Registry,
	dispatcher *notification.Dispatcher, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		liveSvc:    liveSvc,
		registry:   registry,
		dispatcher: dispatcher,
		log:        log.With().Str("handler", "live").Logger(),
	}
}

// Register registers live emit routes.
func (h *LiveHandler) Register(api fiber.Router) {
	api.Post("/editions/:id/entries/:entryId/validated", h.EntryValidated)
	api.Post("/editions/:id/entries/:entryId/invalidated", h.EntryInvalidated)
	api.Post("/editions/:id/stats", h.UpdateStats)
	api.Get("/editions/:id/live", h.LiveStatus)
	api.Post("/users/:userId/notify", h.NotifyUser)
}

type entryEventRequest struct {
	TicketCode  string `json:"ticketCode"`
	ValidatedBy string `json:"validatedBy"`
}

// EntryValidated broadcasts a ticket scan to the edition's streams.
func (h *LiveHandler) EntryValidated(c *fiber.Ctx) error {
	return h.emitEntry(c, false)
}

// EntryInvalidated broadcasts an undone scan.
func (h *LiveHandler) EntryInvalidated(c *fiber.Ctx) error {
	return h.emitEntry(c, true)
}

func (h *LiveHandler) emitEntry(c *fiber.Ctx, invalidated bool) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	editionID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}
	entryID, err := ParamInt64(c, "entryId")
	if err != nil {
		return response.AppError(c, err)
	}

	var req entryEventRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, 400, "invalid request body")
	}

	event := &live.EntryEvent{
		EntryID:     entryID,
		TicketCode:  req.TicketCode,
		ValidatedBy: req.ValidatedBy,
		ValidatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if invalidated {
		h.liveSvc.BroadcastEntryInvalidated(editionID, event)
	} else {
		h.liveSvc.BroadcastEntryValidated(editionID, event)
	}

	return response.OK(c, fiber.Map{"entryId": entryID})
}

type statsRequest struct {
	TotalEntries     int64 `json:"totalEntries"`
	ValidatedEntries int64 `json:"validatedEntries"`
}

// UpdateStats broadcasts fresh edition aggregates and caches them as the
// baseline for new subscribers.
func (h *LiveHandler) UpdateStats(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	editionID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	var req statsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, 400, "invalid request body")
	}

	h.liveSvc.UpdateStats(c.Context(), editionID, &live.EditionStats{
		TotalEntries:     req.TotalEntries,
		ValidatedEntries: req.ValidatedEntries,
	})

	return response.OK(c, fiber.Map{"editionId": editionID})
}

// LiveStatus reports live connections for an edition.
func (h *LiveHandler) LiveStatus(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	editionID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, fiber.Map{
		"editionId":         editionID,
		"activeConnections": h.liveSvc.ConnectedCount(editionID),
	})
}

type notifyRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// NotifyUser reaches a user on their live stream when one is open, and falls
// back to web push when none is.
func (h *LiveHandler) NotifyUser(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	targetID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return response.Error(c, 400, "invalid userId")
	}

	var req notifyRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return response.Error(c, 400, "title is required")
	}

	payload := domain.NewPushPayload(req.Title, req.Body, req.URL)

	scope := domain.UserScope(targetID)
	if h.registry.Count(scope) > 0 {
		h.registry.Broadcast(scope, domain.NewNotificationEvent(payload))
		return response.OK(c, fiber.Map{"delivery": "stream"})
	}

	delivered := h.dispatcher.SendToUser(c.Context(), targetID, payload)
	return response.OK(c, fiber.Map{"delivery": "push", "delivered": delivered})
}
