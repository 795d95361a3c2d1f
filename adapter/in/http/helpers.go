package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/powange/convention-de-jonglerie-sub008/pkg/apperr"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetUserID safely extracts user_id from fiber context
// Returns error if not authenticated
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDVal := c.Locals("user_id")
	if userIDVal == nil {
		return uuid.Nil, ErrUnauthorized
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}
	return userID, nil
}

// ParamInt64 parses a positive int64 route parameter.
func ParamInt64(c *fiber.Ctx, name string) (int64, error) {
	v, err := c.ParamsInt(name)
	if err != nil || v <= 0 {
		return 0, apperr.BadRequest("invalid " + name)
	}
	return int64(v), nil
}
