package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/apperr"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/scheduler"
)

// fakeRealtime records broadcasts per scope.
type fakeRealtime struct {
	broadcasts map[domain.ScopeKey][]*domain.StreamEvent
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{broadcasts: make(map[domain.ScopeKey][]*domain.StreamEvent)}
}

func (f *fakeRealtime) Register(domain.ScopeKey, out.Channel)   {}
func (f *fakeRealtime) Unregister(domain.ScopeKey, out.Channel) {}
func (f *fakeRealtime) Count(domain.ScopeKey) int               { return 0 }

func (f *fakeRealtime) Broadcast(scope domain.ScopeKey, event *domain.StreamEvent) {
	f.broadcasts[scope] = append(f.broadcasts[scope], event)
}

func newTestService(store *fakeChatStore, rt *fakeRealtime) *Service {
	return NewService(store, rt, NewPresenceTracker(), scheduler.NewManual(), zerolog.Nop())
}

func TestOpenConversationStreamFailsClosedForNonParticipant(t *testing.T) {
	stranger := uuid.New()
	store := &fakeChatStore{participants: map[uuid.UUID]bool{}}
	svc := newTestService(store, newFakeRealtime())

	ch := &collectChannel{}
	poller, err := svc.OpenConversationStream(context.Background(), 1, stranger, ch)
	if poller != nil {
		t.Fatal("poller created despite authorization failure")
	}
	if !apperr.IsAppError(err) || apperr.GetHTTPStatus(err) != 403 {
		t.Fatalf("error = %v, want 403 AppError", err)
	}
}

func TestMarkReadNotifiesUnreadCount(t *testing.T) {
	member := uuid.New()
	store := &fakeChatStore{
		participants: map[uuid.UUID]bool{member: true},
		unread:       4,
	}
	rt := newFakeRealtime()
	svc := newTestService(store, rt)

	if err := svc.MarkRead(context.Background(), 1, member, 17); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	if len(store.markedRead) != 1 || store.markedRead[0] != 17 {
		t.Fatalf("markedRead = %v, want [17]", store.markedRead)
	}

	events := rt.broadcasts[domain.UserScope(member)]
	if len(events) != 1 {
		t.Fatalf("user scope got %d broadcasts, want 1", len(events))
	}
	if events[0].Type != domain.EventUnreadCount || events[0].UnreadCount == nil || *events[0].UnreadCount != 4 {
		t.Fatalf("broadcast = %+v, want unread-count of 4", events[0])
	}
}

func TestNotifyMessageCreatedRefreshesOtherParticipants(t *testing.T) {
	author, alice, bob := uuid.New(), uuid.New(), uuid.New()
	store := &fakeChatStore{
		participants: map[uuid.UUID]bool{author: true, alice: true, bob: true},
		unread:       3,
	}
	rt := newFakeRealtime()
	svc := newTestService(store, rt)

	if err := svc.NotifyMessageCreated(context.Background(), 1, author); err != nil {
		t.Fatalf("NotifyMessageCreated: %v", err)
	}

	if events := rt.broadcasts[domain.UserScope(author)]; len(events) != 0 {
		t.Fatalf("author scope got %d broadcasts, want 0", len(events))
	}
	for _, recipient := range []uuid.UUID{alice, bob} {
		events := rt.broadcasts[domain.UserScope(recipient)]
		if len(events) != 1 {
			t.Fatalf("recipient scope got %d broadcasts, want 1", len(events))
		}
		if events[0].Type != domain.EventUnreadCount || events[0].UnreadCount == nil || *events[0].UnreadCount != 3 {
			t.Fatalf("broadcast = %+v, want unread-count of 3", events[0])
		}
	}
}

func TestNotifyUnreadCountToOfflineUserIsSilent(t *testing.T) {
	// The fake registry accepts broadcasts to any scope; the point is that
	// the call neither errors nor panics when nobody listens.
	store := &fakeChatStore{unread: 2}
	svc := newTestService(store, newFakeRealtime())

	svc.NotifyUnreadCount(context.Background(), uuid.New())
}

func TestSetTypingRequiresMembership(t *testing.T) {
	member, stranger := uuid.New(), uuid.New()
	store := &fakeChatStore{participants: map[uuid.UUID]bool{member: true}}
	svc := newTestService(store, newFakeRealtime())

	if err := svc.SetTyping(context.Background(), 1, member, true); err != nil {
		t.Fatalf("member SetTyping: %v", err)
	}
	if err := svc.SetTyping(context.Background(), 1, stranger, true); err == nil {
		t.Fatal("stranger SetTyping succeeded")
	}

	typers := svc.ActiveTypers(1)
	if len(typers) != 1 || typers[0] != member {
		t.Fatalf("ActiveTypers = %v, want [%s]", typers, member)
	}
}
