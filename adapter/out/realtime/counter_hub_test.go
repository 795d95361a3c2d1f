package realtime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/scheduler"
)

func TestCounterHubInitialSnapshotAndHeartbeat(t *testing.T) {
	reg := newTestRegistry()
	sched := scheduler.NewManual()
	hub := NewCounterHub(reg, sched, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	first := &fakeChannel{}
	hub.Subscribe(10, 3, first)

	if len(first.sent) != 1 {
		t.Fatalf("first client got %d events on subscribe, want 1", len(first.sent))
	}
	connected := first.sent[0]
	if connected.Type != domain.EventConnected {
		t.Fatalf("initial event type = %q, want connected", connected.Type)
	}
	if connected.CounterID != 3 || connected.ActiveConnections != 1 {
		t.Fatalf("connected snapshot = counter %d / %d connections, want 3 / 1",
			connected.CounterID, connected.ActiveConnections)
	}

	second := &fakeChannel{}
	hub.Subscribe(10, 3, second)
	if second.sent[0].ActiveConnections != 2 {
		t.Fatalf("second snapshot reports %d connections, want 2", second.sent[0].ActiveConnections)
	}

	sched.Advance(30 * time.Second)

	for name, ch := range map[string]*fakeChannel{"first": first, "second": second} {
		last := ch.sent[len(ch.sent)-1]
		if last.Type != domain.EventPing {
			t.Fatalf("%s client last event = %q, want ping", name, last.Type)
		}
		if last.ActiveConnections != 2 {
			t.Fatalf("%s client ping reports %d connections, want 2", name, last.ActiveConnections)
		}
	}
}

func TestCounterHubHeartbeatPrunesDeadChannels(t *testing.T) {
	reg := newTestRegistry()
	sched := scheduler.NewManual()
	hub := NewCounterHub(reg, sched, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	alive := &fakeChannel{}
	dying := &fakeChannel{}
	hub.Subscribe(1, 1, alive)
	hub.Subscribe(1, 1, dying)

	dying.Close()
	sched.Advance(30 * time.Second)

	if got := hub.Count(1, 1); got != 1 {
		t.Fatalf("Count after heartbeat = %d, want 1", got)
	}

	sched.Advance(30 * time.Second)
	last := alive.sent[len(alive.sent)-1]
	if last.ActiveConnections != 1 {
		t.Fatalf("ping after prune reports %d connections, want 1", last.ActiveConnections)
	}
}

func TestCounterHubSubscribeFailedSnapshotUnregisters(t *testing.T) {
	reg := newTestRegistry()
	hub := NewCounterHub(reg, scheduler.NewManual(), zerolog.Nop())

	dead := &fakeChannel{closed: true}
	hub.Subscribe(2, 9, dead)

	if got := hub.Count(2, 9); got != 0 {
		t.Fatalf("dead channel left registered: count = %d", got)
	}
}
