package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/service/chat"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/ratelimit"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/response"
)

// =============================================================================
// ChatHandler - conversation REST endpoints
// =============================================================================

// ChatHandler serves the non-streaming conversation endpoints.
type ChatHandler struct {
	svc     *chat.Service
	limiter *ratelimit.SlidingWindowLimiter
	log     zerolog.Logger
}

// NewChatHandler creates the chat handler. limiter may be nil.
func NewChatHandler(svc *chat.Service, limiter *ratelimit.SlidingWindowLimiter, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		svc:     svc,
		limiter: limiter,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// Register registers chat routes.
func (h *ChatHandler) Register(api fiber.Router) {
	api.Post("/conversations/:id/typing", h.SetTyping)
	api.Get("/conversations/:id/typing", h.GetTypers)
	api.Post("/conversations/:id/read", h.MarkRead)
	api.Post("/conversations/:id/messages/created", h.MessageCreated)
	api.Get("/me/unread", h.UnreadCount)
}

// MessageCreated is the emit endpoint the message write path calls after
// committing a new message. Every other participant gets a fresh unread
// badge on their live channels.
func (h *ChatHandler) MessageCreated(c *fiber.Ctx) error {
	authorID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	conversationID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	if err := h.svc.NotifyMessageCreated(c.Context(), conversationID, authorID); err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, fiber.Map{"notified": true})
}

type typingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// SetTyping records or clears the typing indicator for the caller.
func (h *ChatHandler) SetTyping(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	conversationID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	if h.limiter != nil {
		key := fmt.Sprintf("typing:%s:%d", userID, conversationID)
		if allowed, _ := h.limiter.Allow(c.Context(), key); !allowed {
			return response.Error(c, 429, "too many typing updates")
		}
	}

	var req typingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, 400, "invalid request body")
	}

	if err := h.svc.SetTyping(c.Context(), conversationID, userID, req.IsTyping); err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, fiber.Map{"isTyping": req.IsTyping})
}

// GetTypers lists users currently typing in the conversation.
func (h *ChatHandler) GetTypers(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	conversationID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	typers := h.svc.ActiveTypers(conversationID)
	userIDs := make([]string, 0, len(typers))
	for _, id := range typers {
		userIDs = append(userIDs, id.String())
	}

	return response.OK(c, fiber.Map{"userIds": userIDs})
}

type markReadRequest struct {
	MessageID int64 `json:"messageId"`
}

// MarkRead advances the caller's read watermark in the conversation.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}
	conversationID, err := ParamInt64(c, "id")
	if err != nil {
		return response.AppError(c, err)
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil || req.MessageID <= 0 {
		return response.Error(c, 400, "messageId is required")
	}

	if err := h.svc.MarkRead(c.Context(), conversationID, userID, req.MessageID); err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, fiber.Map{"messageId": req.MessageID})
}

// UnreadCount returns the caller's total unread message count.
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Error(c, 401, "unauthorized")
	}

	count, err := h.svc.UnreadCount(c.Context(), userID)
	if err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, fiber.Map{"unreadCount": count})
}
