package realtime

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
)

// fakeChannel records sends and can be made to fail like a broken pipe.
type fakeChannel struct {
	sent   []*domain.StreamEvent
	closed bool
}

func (f *fakeChannel) Send(event *domain.StreamEvent) error {
	if f.closed {
		return out.ErrChannelClosed
	}
	f.sent = append(f.sent, event)
	return nil
}

func (f *fakeChannel) Close() { f.closed = true }

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop(), nil)
}

func TestRegistryCountMatchesRegistrations(t *testing.T) {
	reg := newTestRegistry()
	scope := domain.EditionScope(1)

	a, b := &fakeChannel{}, &fakeChannel{}

	reg.Register(scope, a)
	reg.Register(scope, b)
	if got := reg.Count(scope); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	reg.Unregister(scope, a)
	if got := reg.Count(scope); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}

	// Removing an absent channel is a no-op.
	reg.Unregister(scope, a)
	if got := reg.Count(scope); got != 1 {
		t.Fatalf("Count after duplicate unregister = %d, want 1", got)
	}
}

func TestRegistryDropsEmptyScopeEntry(t *testing.T) {
	reg := newTestRegistry()
	scope := domain.EditionScope(7)
	ch := &fakeChannel{}

	reg.Register(scope, ch)
	reg.Unregister(scope, ch)

	if got := reg.Count(scope); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
	if got := len(reg.Scopes()); got != 0 {
		t.Fatalf("empty scope entry left behind: %v", reg.Scopes())
	}
}

func TestBroadcastToUnknownScopeIsNoop(t *testing.T) {
	reg := newTestRegistry()

	reg.Broadcast(domain.EditionScope(99), domain.NewPingEvent())

	if got := len(reg.Scopes()); got != 0 {
		t.Fatalf("broadcast to empty scope left residual entries: %v", reg.Scopes())
	}
}

func TestBroadcastSurvivesFailingChannel(t *testing.T) {
	reg := newTestRegistry()
	scope := domain.EditionScope(3)

	healthy := &fakeChannel{}
	broken := &fakeChannel{closed: true}

	reg.Register(scope, healthy)
	reg.Register(scope, broken)

	reg.Broadcast(scope, domain.NewEditionEvent(domain.EventEntryValidated, map[string]any{"entryId": 42}))

	if len(healthy.sent) != 1 {
		t.Fatalf("healthy channel got %d events, want 1", len(healthy.sent))
	}
	// The broken channel is unregistered as a consequence of the failure.
	if got := reg.Count(scope); got != 1 {
		t.Fatalf("Count after failed delivery = %d, want 1", got)
	}
}

func TestBroadcastPreservesPerChannelOrder(t *testing.T) {
	reg := newTestRegistry()
	scope := domain.EditionScope(5)
	ch := &fakeChannel{}
	reg.Register(scope, ch)

	first := domain.NewEditionEvent(domain.EventEntryValidated, nil)
	second := domain.NewEditionEvent(domain.EventEntryInvalidated, nil)
	third := domain.NewEditionEvent(domain.EventStatsUpdated, nil)

	reg.Broadcast(scope, first)
	reg.Broadcast(scope, second)
	reg.Broadcast(scope, third)

	want := []domain.EventType{domain.EventEntryValidated, domain.EventEntryInvalidated, domain.EventStatsUpdated}
	if len(ch.sent) != len(want) {
		t.Fatalf("got %d events, want %d", len(ch.sent), len(want))
	}
	for i, ev := range ch.sent {
		if ev.Type != want[i] {
			t.Fatalf("event %d has type %q, want %q", i, ev.Type, want[i])
		}
	}
}

func TestStreamChannelClosedSendFails(t *testing.T) {
	ch := NewStreamChannel(4)
	ch.Close()
	ch.Close() // idempotent

	if err := ch.Send(domain.NewPingEvent()); err != out.ErrChannelClosed {
		t.Fatalf("Send on closed channel = %v, want ErrChannelClosed", err)
	}

	select {
	case <-ch.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestStreamChannelFullBufferDropsWithoutBlocking(t *testing.T) {
	ch := NewStreamChannel(1)

	if err := ch.Send(domain.NewPingEvent()); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	// Second send must return immediately even though nobody drains.
	if err := ch.Send(domain.NewPingEvent()); err != nil {
		t.Fatalf("Send on full buffer: %v", err)
	}

	if got := len(ch.Events()); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
}
