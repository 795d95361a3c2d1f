package out

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
)

// ErrSubscriptionGone signals that the push service reported the endpoint as
// permanently invalid. The dispatcher must deactivate the subscription.
var ErrSubscriptionGone = errors.New("push subscription no longer valid")

// PushSubscriptionStore persists browser push registrations.
type PushSubscriptionStore interface {
	Save(ctx context.Context, sub *domain.PushSubscription) error
	DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.PushSubscription, error)
	ListActiveForUsers(ctx context.Context, userIDs []uuid.UUID) ([]*domain.PushSubscription, error)
	ListAllActive(ctx context.Context) ([]*domain.PushSubscription, error)
	Deactivate(ctx context.Context, subscriptionID int64) error
}

// PushSender delivers one payload to one subscription via the platform push
// service. Returns ErrSubscriptionGone for permanently invalid endpoints.
type PushSender interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload *domain.PushPayload) error
}

// DeliveryReportStore archives per-attempt dispatch outcomes.
type DeliveryReportStore interface {
	Record(ctx context.Context, report *domain.PushDeliveryReport) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int64) ([]*domain.PushDeliveryReport, error)
}
