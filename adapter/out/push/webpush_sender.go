// Package push delivers notifications to browser endpoints via the Web Push
// protocol (VAPID).
package push

import (
	"context"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/apperr"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/httputil"
)

const defaultTTL = 24 * 60 * 60 // seconds the push service may hold the message

// =============================================================================
// WebPushSender - out.PushSender over the Web Push protocol
// =============================================================================

// Config holds the VAPID identity used to sign push requests.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string // contact mailto: for the push services
}

// WebPushSender signs and posts encrypted payloads to push endpoints. All
// vendor calls go through a shared circuit breaker: when a push service
// degrades, dispatch fails fast instead of stacking 30-second timeouts.
type WebPushSender struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewWebPushSender creates a sender with a tuned HTTP client.
func NewWebPushSender(cfg Config, log zerolog.Logger) *WebPushSender {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "webpush",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &WebPushSender{
		cfg:     cfg,
		client:  httputil.NewClient(httputil.DefaultClientConfig()),
		breaker: breaker,
		log:     log.With().Str("component", "webpush_sender").Logger(),
	}
}

// Send delivers one payload to one subscription. A 404/410 from the push
// service means the endpoint is permanently dead and maps to
// out.ErrSubscriptionGone; the dispatcher deactivates it.
func (s *WebPushSender) Send(ctx context.Context, sub *domain.PushSubscription, payload *domain.PushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(err, apperr.CodePushFailed, "payload serialization failed", 500)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	result, err := s.breaker.Execute(func() (any, error) {
		return webpush.SendNotificationWithContext(ctx, body, target, &webpush.Options{
			HTTPClient:      s.client,
			Subscriber:      s.cfg.Subscriber,
			VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
			TTL:             defaultTTL,
		})
	})
	if err != nil {
		return apperr.Wrap(err, apperr.CodePushFailed, "push service call failed", 502)
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return out.ErrSubscriptionGone
	case resp.StatusCode >= 400:
		s.log.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", sub.Endpoint).
			Msg("push service rejected delivery")
		return apperr.New(apperr.CodePushFailed, "push service rejected delivery", resp.StatusCode)
	}
	return nil
}

var _ out.PushSender = (*WebPushSender)(nil)
