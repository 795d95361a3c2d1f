package response

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/powange/convention-de-jonglerie-sub008/pkg/apperr"
)

func perform(t *testing.T, handler fiber.Handler) (int, Response) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal %q: %v", body, err)
	}
	return resp.StatusCode, envelope
}

func TestOKWrapsData(t *testing.T) {
	status, envelope := perform(t, func(c *fiber.Ctx) error {
		return OK(c, fiber.Map{"unreadCount": 3})
	})

	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if !envelope.Success || envelope.Error != nil {
		t.Fatalf("envelope = %+v, want success without error", envelope)
	}
	if envelope.Timestamp == "" {
		t.Fatal("timestamp missing")
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok || data["unreadCount"] != float64(3) {
		t.Fatalf("data = %#v, want unreadCount 3", envelope.Data)
	}
}

func TestErrorDerivesCodeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{400, apperr.CodeBadRequest},
		{401, apperr.CodeUnauthorized},
		{403, apperr.CodeForbidden},
		{404, apperr.CodeNotFound},
		{429, apperr.CodeRateLimited},
		{500, apperr.CodeInternalError},
	}
	for _, tt := range tests {
		status, envelope := perform(t, func(c *fiber.Ctx) error {
			return Error(c, tt.status, "nope")
		})

		if status != tt.status {
			t.Fatalf("status = %d, want %d", status, tt.status)
		}
		if envelope.Success || envelope.Error == nil {
			t.Fatalf("envelope = %+v, want failure with error", envelope)
		}
		if envelope.Error.Code != tt.code || envelope.Error.Message != "nope" {
			t.Fatalf("error = %+v, want code %s", envelope.Error, tt.code)
		}
	}
}

func TestAppErrorKeepsStatusCodeAndDetails(t *testing.T) {
	status, envelope := perform(t, func(c *fiber.Ctx) error {
		err := apperr.Forbidden("not a participant").WithDetail("conversationId", 7)
		return AppError(c, err)
	})

	if status != 403 {
		t.Fatalf("status = %d, want 403", status)
	}
	if envelope.Error == nil || envelope.Error.Code != apperr.CodeForbidden {
		t.Fatalf("error = %+v, want %s", envelope.Error, apperr.CodeForbidden)
	}
	if envelope.Error.Details["conversationId"] != float64(7) {
		t.Fatalf("details = %#v, want conversationId 7", envelope.Error.Details)
	}
}
