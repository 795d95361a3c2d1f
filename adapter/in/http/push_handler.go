package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/notification"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/response"
)

// =============================================================================
// PushHandler - web push subscription endpoints
// =============================================================================

// PushHandler manages browser push subscriptions and reports.
type PushHandler struct {
	subs       out.PushSubscriptionStore
	reports    out.DeliveryReportStore // optional
	dispatcher *notification.Dispatcher
	vapidKey   string
	log        zerolog.Logger
}

// NewPushHandler creates the push handler.
func NewPushHandler(subs out.PushSubscriptionStore, reports out.DeliveryReportStore,
	dispatcher *notification.Dispatcher, vapidPublicKey string, log zerolog.Logger) *PushHandler {
	return &PushHandler{
		subs:       subs,
		reports:    reports,
		dispatcher: dispatcher,
		vapidKey:   vapidPublicKey,
		log:        log.With().Str("handler", "push").Logger(),
	}
}

// Register registers push routes.
func (h *PushHandler) Register(api fiber.Router) {
	api.Get("/push/vapid-key", h.VapidKey)
	api.Post("/push/subscriptions", h.Subscribe)
	api.Delete("/push/subscriptions", h.Unsubscribe)
	api.Post("/push/test", h.SendTest)
	api.Get("/push/deliveries", h.Deliveries)
}

// VapidKey returns the public VAPID key clients subscribe with.
func (h *PushHandler) VapidKey(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"publicKey": h.vapidKey})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe registers (or reactivates) a push endpoint for the caller.
func (h *PushHandler) Subscribe(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}

	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, 400, "invalid request body")
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return response.Error(c, 400, "endpoint and keys are required")
	}

	sub := &domain.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
		Active:   true,
	}
	if err := h.subs.Save(c.Context(), sub); err != nil {
		return response.AppError(c, err)
	}

	h.log.Info().Str("user_id", userID.String()).Msg("push subscription registered")
	return response.Created(c, nil)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes a push endpoint.
func (h *PushHandler) Unsubscribe(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}

	var req unsubscribeRequest
	if err := c.BodyParser(&req); err != nil || req.Endpoint == "" {
		return response.Error(c, 400, "endpoint is required")
	}

	if err := h.subs.DeleteByEndpoint(c.Context(), userID, req.Endpoint); err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, fiber.Map{"deleted": true})
}

// SendTest pushes a test notification to every endpoint of the caller.
func (h *PushHandler) SendTest(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}

	payload := domain.NewPushPayload("Test notification",
		"Push notifications are working.", "/notifications")
	delivered := h.dispatcher.SendToUser(c.Context(), userID, payload)

	return response.OK(c, fiber.Map{"delivered": delivered})
}

// Deliveries lists recent dispatch outcomes for the caller.
func (h *PushHandler) Deliveries(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	if h.reports == nil {
		return response.OK(c, []any{})
	}

	limit := int64(c.QueryInt("limit", 50))
	reports, err := h.reports.ListForUser(c.Context(), userID, limit)
	if err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, reports)
}
