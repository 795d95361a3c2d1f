package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestTracker() (*PresenceTracker, *time.Time) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewPresenceTracker()
	tracker.now = func() time.Time { return now }
	return tracker, &now
}

func TestTypingExpiresAfterWindow(t *testing.T) {
	tracker, now := newTestTracker()
	user := uuid.New()

	tracker.SetTyping(user, 1, true)

	*now = now.Add(2900 * time.Millisecond)
	if got := tracker.ActiveTypers(1); len(got) != 1 || got[0] != user {
		t.Fatalf("ActiveTypers within window = %v, want [%s]", got, user)
	}

	*now = now.Add(200 * time.Millisecond)
	if got := tracker.ActiveTypers(1); len(got) != 0 {
		t.Fatalf("ActiveTypers past window = %v, want empty", got)
	}
}

func TestTypingRefreshExtendsWindow(t *testing.T) {
	tracker, now := newTestTracker()
	user := uuid.New()

	tracker.SetTyping(user, 1, true)
	*now = now.Add(2 * time.Second)
	tracker.SetTyping(user, 1, true)
	*now = now.Add(2 * time.Second)

	if got := tracker.ActiveTypers(1); len(got) != 1 {
		t.Fatalf("refreshed entry expired early: %v", got)
	}
}

func TestStopTypingDeletesImmediately(t *testing.T) {
	tracker, _ := newTestTracker()
	user := uuid.New()

	tracker.SetTyping(user, 1, true)
	tracker.SetTyping(user, 1, false)

	if got := tracker.ActiveTypers(1); len(got) != 0 {
		t.Fatalf("entry survived explicit stop: %v", got)
	}
}

func TestTypersAreScopedPerConversation(t *testing.T) {
	tracker, _ := newTestTracker()
	alice, bob := uuid.New(), uuid.New()

	tracker.SetTyping(alice, 1, true)
	tracker.SetTyping(bob, 2, true)

	if got := tracker.ActiveTypers(1); len(got) != 1 || got[0] != alice {
		t.Fatalf("conversation 1 typers = %v, want [%s]", got, alice)
	}
	if got := tracker.ActiveTypers(2); len(got) != 1 || got[0] != bob {
		t.Fatalf("conversation 2 typers = %v, want [%s]", got, bob)
	}
}

func TestExpiredEntriesAreSweptOnRead(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.SetTyping(uuid.New(), 3, true)
	*now = now.Add(10 * time.Second)

	tracker.ActiveTypers(3)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if _, ok := tracker.typing[3]; ok {
		t.Fatal("expired conversation entry not physically removed")
	}
}
