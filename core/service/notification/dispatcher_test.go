package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
)

// fakeSubscriptionStore keeps subscriptions in memory.
type fakeSubscriptionStore struct {
	subs []*domain.PushSubscription
}

func (f *fakeSubscriptionStore) Save(_ context.Context, sub *domain.PushSubscription) error {
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeSubscriptionStore) DeleteByEndpoint(_ context.Context, userID uuid.UUID, endpoint string) error {
	for i, s := range f.subs {
		if s.UserID == userID && s.Endpoint == endpoint {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeSubscriptionStore) ListActive(_ context.Context, userID uuid.UUID) ([]*domain.PushSubscription, error) {
	var active []*domain.PushSubscription
	for _, s := range f.subs {
		if s.UserID == userID && s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

func (f *fakeSubscriptionStore) ListActiveForUsers(ctx context.Context, userIDs []uuid.UUID) ([]*domain.PushSubscription, error) {
	var active []*domain.PushSubscription
	for _, id := range userIDs {
		subs, _ := f.ListActive(ctx, id)
		active = append(active, subs...)
	}
	return active, nil
}

func (f *fakeSubscriptionStore) ListAllActive(_ context.Context) ([]*domain.PushSubscription, error) {
	var active []*domain.PushSubscription
	for _, s := range f.subs {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

func (f *fakeSubscriptionStore) Deactivate(_ context.Context, id int64) error {
	for _, s := range f.subs {
		if s.ID == id {
			s.Active = false
		}
	}
	return nil
}

// fakeSender fails configured endpoints.
type fakeSender struct {
	goneEndpoints map[string]bool
	failEndpoints map[string]bool
	sent          []string
}

func (f *fakeSender) Send(_ context.Context, sub *domain.PushSubscription, _ *domain.PushPayload) error {
	if f.goneEndpoints[sub.Endpoint] {
		return out.ErrSubscriptionGone
	}
	if f.failEndpoints[sub.Endpoint] {
		return errors.New("push service unavailable")
	}
	f.sent = append(f.sent, sub.Endpoint)
	return nil
}

func subscription(id int64, userID uuid.UUID, endpoint string) *domain.PushSubscription {
	return &domain.PushSubscription{ID: id, UserID: userID, Endpoint: endpoint, Active: true}
}

func TestSendToUserSucceedsWithOneLiveEndpoint(t *testing.T) {
	user := uuid.New()
	store := &fakeSubscriptionStore{subs: []*domain.PushSubscription{
		subscription(1, user, "https://push.example/dead"),
		subscription(2, user, "https://push.example/live"),
	}}
	sender := &fakeSender{failEndpoints: map[string]bool{"https://push.example/dead": true}}
	d := NewDispatcher(store, sender, nil, nil, nil, zerolog.Nop())

	ok := d.SendToUser(context.Background(), user, domain.NewPushPayload("title", "body", "/editions/1"))
	if !ok {
		t.Fatal("SendToUser = false, want true with one successful delivery")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("delivered to %d endpoints, want 1", len(sender.sent))
	}
}

func TestGoneEndpointIsDeactivated(t *testing.T) {
	user := uuid.New()
	store := &fakeSubscriptionStore{subs: []*domain.PushSubscription{
		subscription(1, user, "https://push.example/gone"),
	}}
	sender := &fakeSender{goneEndpoints: map[string]bool{"https://push.example/gone": true}}
	d := NewDispatcher(store, sender, nil, nil, nil, zerolog.Nop())

	if ok := d.SendToUser(context.Background(), user, domain.NewPushPayload("t", "b", "/")); ok {
		t.Fatal("SendToUser = true with only a gone endpoint")
	}

	active, _ := store.ListActive(context.Background(), user)
	if len(active) != 0 {
		t.Fatalf("gone subscription still listed as active: %v", active)
	}
}

func TestSendToUsersCountsPerRecipient(t *testing.T) {
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	store := &fakeSubscriptionStore{subs: []*domain.PushSubscription{
		subscription(1, alice, "https://push.example/a"),
		subscription(2, bob, "https://push.example/b"),
		// carol has no subscription at all
	}}
	sender := &fakeSender{failEndpoints: map[string]bool{"https://push.example/b": true}}
	d := NewDispatcher(store, sender, nil, nil, nil, zerolog.Nop())

	got := d.SendToUsers(context.Background(), []uuid.UUID{alice, bob, carol},
		domain.NewPushPayload("t", "b", "/"))
	if got != 1 {
		t.Fatalf("SendToUsers = %d, want 1", got)
	}
}

func TestSendToAllAggregatesDeliveries(t *testing.T) {
	store := &fakeSubscriptionStore{subs: []*domain.PushSubscription{
		subscription(1, uuid.New(), "https://push.example/a"),
		subscription(2, uuid.New(), "https://push.example/b"),
	}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, nil, nil, nil, zerolog.Nop())

	if got := d.SendToAll(context.Background(), domain.NewPushPayload("t", "b", "/")); got != 2 {
		t.Fatalf("SendToAll = %d, want 2", got)
	}
}

// recordingReports captures archived outcomes.
type recordingReports struct {
	reports []*domain.PushDeliveryReport
}

func (r *recordingReports) Record(_ context.Context, report *domain.PushDeliveryReport) error {
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingReports) ListForUser(context.Context, uuid.UUID, int64) ([]*domain.PushDeliveryReport, error) {
	return r.reports, nil
}

func TestDispatchOutcomesAreArchived(t *testing.T) {
	user := uuid.New()
	store := &fakeSubscriptionStore{subs: []*domain.PushSubscription{
		subscription(1, user, "https://push.example/live"),
		subscription(2, user, "https://push.example/gone"),
	}}
	sender := &fakeSender{goneEndpoints: map[string]bool{"https://push.example/gone": true}}
	reports := &recordingReports{}
	d := NewDispatcher(store, sender, reports, nil, nil, zerolog.Nop())

	d.SendToUser(context.Background(), user, domain.NewPushPayload("t", "b", "/"))

	if len(reports.reports) != 2 {
		t.Fatalf("archived %d reports, want 2", len(reports.reports))
	}
	var succeeded, deactivated int
	for _, rep := range reports.reports {
		if rep.Success {
			succeeded++
		}
		if rep.Deactivated {
			deactivated++
		}
	}
	if succeeded != 1 || deactivated != 1 {
		t.Fatalf("succeeded=%d deactivated=%d, want 1/1", succeeded, deactivated)
	}
}
