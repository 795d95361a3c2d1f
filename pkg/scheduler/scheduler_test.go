package scheduler

import (
	"testing"
	"time"
)

func TestManualFiresOncePerInterval(t *testing.T) {
	sched := NewManual()

	var fired int
	sched.Repeat(2*time.Second, func() { fired++ })

	sched.Advance(1 * time.Second)
	if fired != 0 {
		t.Fatalf("task fired before its interval: %d", fired)
	}

	sched.Advance(1 * time.Second)
	if fired != 1 {
		t.Fatalf("expected 1 firing after 2s, got %d", fired)
	}

	sched.Advance(6 * time.Second)
	if fired != 4 {
		t.Fatalf("expected 4 firings after 8s, got %d", fired)
	}
}

func TestManualCancel(t *testing.T) {
	sched := NewManual()

	var fired int
	cancel := sched.Repeat(time.Second, func() { fired++ })

	sched.Advance(time.Second)
	cancel()
	cancel() // second cancel is a no-op
	sched.Advance(5 * time.Second)

	if fired != 1 {
		t.Fatalf("cancelled task kept firing: %d", fired)
	}
}

func TestManualInterleavesTasksInDueOrder(t *testing.T) {
	sched := NewManual()

	var order []string
	sched.Repeat(2*time.Second, func() { order = append(order, "poll") })
	sched.Repeat(3*time.Second, func() { order = append(order, "ping") })

	sched.Advance(6 * time.Second)

	want := []string{"poll", "ping", "poll", "poll", "ping"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}
