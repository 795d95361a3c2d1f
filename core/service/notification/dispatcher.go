// Package notification implements the push fallback path: delivery of
// notifications to registered browser endpoints when (or regardless of
// whether) a live stream is open for the recipient.
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/metrics"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/workpool"
)

// =============================================================================
// Dispatcher - platform push delivery with dead-endpoint cleanup
// =============================================================================

// Dispatcher delivers payloads to every active subscription of the targeted
// users. It is invoked independently of live-channel state: whether a stream
// is open is a point-in-time fact that can change before send time.
type Dispatcher struct {
	subs    out.PushSubscriptionStore
	sender  out.PushSender
	reports out.DeliveryReportStore // optional
	pool    *workpool.Pool          // optional, bulk fan-out
	metrics *metrics.StreamMetrics
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. reports and pool may be nil.
func NewDispatcher(subs out.PushSubscriptionStore, sender out.PushSender,
	reports out.DeliveryReportStore, pool *workpool.Pool,
	m *metrics.StreamMetrics, log zerolog.Logger) *Dispatcher {
	if m == nil {
		m = metrics.NewStreamMetrics()
	}
	return &Dispatcher{
		subs:    subs,
		sender:  sender,
		reports: reports,
		pool:    pool,
		metrics: m,
		log:     log.With().Str("component", "push_dispatcher").Logger(),
	}
}

// SendToUser delivers the payload to every active subscription of one user.
// Returns true if at least one delivery succeeded.
func (d *Dispatcher) SendToUser(ctx context.Context, userID uuid.UUID, payload *domain.PushPayload) bool {
	subscriptions, err := d.subs.ListActive(ctx, userID)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID.String()).Msg("subscription lookup failed")
		return false
	}
	return d.sendToSubscriptions(ctx, subscriptions, payload) > 0
}

// SendToUsers delivers the payload to several users through the worker pool
// and returns the number of users with at least one successful delivery.
func (d *Dispatcher) SendToUsers(ctx context.Context, userIDs []uuid.UUID, payload *domain.PushPayload) int {
	if len(userIDs) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, userID := range userIDs {
		userID := userID
		wg.Add(1)
		job := func(jobCtx context.Context) {
			defer wg.Done()
			if d.SendToUser(jobCtx, userID, payload) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}
		if d.pool == nil || !d.pool.Submit(job) {
			job(ctx)
		}
	}
	wg.Wait()
	return delivered
}

// SendToAll delivers the payload to every user with an active subscription
// and returns the total count of successful endpoint deliveries.
func (d *Dispatcher) SendToAll(ctx context.Context, payload *domain.PushPayload) int {
	subscriptions, err := d.subs.ListAllActive(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("subscription listing failed")
		return 0
	}
	return d.sendToSubscriptions(ctx, subscriptions, payload)
}

func (d *Dispatcher) sendToSubscriptions(ctx context.Context,
	subscriptions []*domain.PushSubscription, payload *domain.PushPayload) int {
	delivered := 0
	for _, sub := range subscriptions {
		err := d.sender.Send(ctx, sub, payload)
		d.record(ctx, sub, payload, err)

		if err == nil {
			d.metrics.PushSent()
			delivered++
			continue
		}

		d.metrics.PushFailed()
		if errors.Is(err, out.ErrSubscriptionGone) {
			// Required side effect: a permanently invalid endpoint must be
			// deactivated so future dispatches skip it.
			if deactivateErr := d.subs.Deactivate(ctx, sub.ID); deactivateErr != nil {
				d.log.Warn().Err(deactivateErr).
					Int64("subscription_id", sub.ID).
					Msg("failed to deactivate dead subscription")
			}
			continue
		}

		d.log.Warn().Err(err).
			Str("user_id", sub.UserID.String()).
			Int64("subscription_id", sub.ID).
			Msg("push delivery failed")
	}
	return delivered
}

// record archives the attempt outcome. Fire and forget.
func (d *Dispatcher) record(ctx context.Context, sub *domain.PushSubscription,
	payload *domain.PushPayload, sendErr error) {
	if d.reports == nil {
		return
	}

	report := &domain.PushDeliveryReport{
		UserID:         sub.UserID,
		Endpoint:       sub.Endpoint,
		NotificationID: payload.Data.NotificationID,
		Success:        sendErr == nil,
		SentAt:         time.Now().UTC(),
	}
	if sendErr != nil {
		report.Error = sendErr.Error()
		report.Deactivated = errors.Is(sendErr, out.ErrSubscriptionGone)
	}

	if err := d.reports.Record(ctx, report); err != nil {
		d.log.Debug().Err(err).Msg("delivery report write failed")
	}
}
