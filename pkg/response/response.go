// Package response provides the standard API response envelope.
package response

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/powange/convention-de-jonglerie-sub008/pkg/apperr"
)

// Response is the standard API response structure.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OK returns a successful response.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Response{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(201).JSON(Response{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

// Error returns an error response with the code derived from the status.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{
		Success:   false,
		Error:     &ErrorInfo{Code: codeForStatus(status), Message: message},
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

// AppError renders an apperr.AppError with its own status, code and details.
func AppError(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	return c.Status(appErr.Status).JSON(Response{
		Success:   false,
		Error:     &ErrorInfo{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func codeForStatus(status int) string {
	switch status {
	case 400:
		return apperr.CodeBadRequest
	case 401:
		return apperr.CodeUnauthorized
	case 403:
		return apperr.CodeForbidden
	case 404:
		return apperr.CodeNotFound
	case 409:
		return apperr.CodeConflict
	case 429:
		return apperr.CodeRateLimited
	case 500:
		return apperr.CodeInternalError
	default:
		return "UNKNOWN_ERROR"
	}
}
