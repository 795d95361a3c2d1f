package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PushSubscription - browser push endpoint registered by a client
// =============================================================================

// PushSubscription is one Web Push endpoint for one user. A user may hold
// several (one per browser/device).
type PushSubscription struct {
	ID         int64      `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Endpoint   string     `json:"endpoint"`
	P256dh     string     `json:"p256dh"`
	Auth       string     `json:"auth"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// =============================================================================
// PushPayload - notification content handed to the platform push service
// =============================================================================

// PushAction is one button rendered on the platform notification.
type PushAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// PushData travels opaque through the push service and is read back by the
// service worker to decide navigation.
type PushData struct {
	URL            string `json:"url"`
	Timestamp      int64  `json:"timestamp"`
	NotificationID string `json:"notificationId"`
}

// PushPayload is the flat notification object serialized into the push body.
type PushPayload struct {
	Title   string       `json:"title"`
	Body    string       `json:"body,omitempty"`
	Message string       `json:"message,omitempty"`
	Icon    string       `json:"icon,omitempty"`
	Badge   string       `json:"badge,omitempty"`
	Image   string       `json:"image,omitempty"`
	Data    PushData     `json:"data"`
	Actions []PushAction `json:"actions,omitempty"`
}

// NewPushPayload fills the mandatory fields and stamps a fresh notification id.
func NewPushPayload(title, body, url string) *PushPayload {
	return &PushPayload{
		Title: title,
		Body:  body,
		Data: PushData{
			URL:            url,
			Timestamp:      time.Now().UnixMilli(),
			NotificationID: uuid.NewString(),
		},
	}
}

// =============================================================================
// PushDeliveryReport - per-attempt dispatch outcome, archived for diagnostics
// =============================================================================

type PushDeliveryReport struct {
	UserID         uuid.UUID `json:"user_id"`
	Endpoint       string    `json:"endpoint"`
	NotificationID string    `json:"notification_id"`
	Success        bool      `json:"success"`
	StatusCode     int       `json:"status_code,omitempty"`
	Error          string    `json:"error,omitempty"`
	Deactivated    bool      `json:"deactivated,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}
