package streamclient

import "testing"

func TestMachineConnectThenOpen(t *testing.T) {
	m := NewMachine()

	if got := m.Step(EventConnect); got != ActionDial {
		t.Fatalf("connect action = %v, want ActionDial", got)
	}
	if m.State() != StateConnecting {
		t.Fatalf("state = %v, want connecting", m.State())
	}

	if got := m.Step(EventOpened); got != ActionNone {
		t.Fatalf("opened action = %v, want ActionNone", got)
	}
	if m.State() != StateOpen {
		t.Fatalf("state = %v, want open", m.State())
	}
	if m.Attempts() != 0 {
		t.Fatalf("attempts = %d, want 0", m.Attempts())
	}
}

func TestMachineGivesUpAfterMaxAttempts(t *testing.T) {
	m := NewMachine()
	m.Step(EventConnect)

	for i := 1; i < MaxAttempts; i++ {
		if got := m.Step(EventFailed); got != ActionRetryAfterDelay {
			t.Fatalf("failure %d action = %v, want ActionRetryAfterDelay", i, got)
		}
	}

	if got := m.Step(EventFailed); got != ActionGiveUp {
		t.Fatalf("failure %d action = %v, want ActionGiveUp", MaxAttempts, got)
	}
	if m.State() != StateClosed {
		t.Fatalf("state after give-up = %v, want closed", m.State())
	}

	// Nothing schedules a sixth attempt on its own.
	if got := m.Step(EventFailed); got != ActionNone {
		t.Fatalf("post-give-up failure action = %v, want ActionNone", got)
	}
}

func TestMachineSuccessResetsAttempts(t *testing.T) {
	m := NewMachine()
	m.Step(EventConnect)
	m.Step(EventFailed)
	m.Step(EventFailed)
	m.Step(EventOpened)

	if m.Attempts() != 0 {
		t.Fatalf("attempts after success = %d, want 0", m.Attempts())
	}

	// A later drop starts counting from scratch.
	m.Step(EventFailed)
	if m.Attempts() != 1 {
		t.Fatalf("attempts after new failure = %d, want 1", m.Attempts())
	}
}

func TestMachineScopeChangeResetsBudget(t *testing.T) {
	m := NewMachine()
	m.Step(EventConnect)
	for i := 0; i < MaxAttempts-1; i++ {
		m.Step(EventFailed)
	}

	if got := m.Step(EventScopeChanged); got != ActionDial {
		t.Fatalf("scope change action = %v, want ActionDial", got)
	}
	if m.Attempts() != 0 {
		t.Fatalf("attempts after scope change = %d, want 0", m.Attempts())
	}

	// The new scope has the full budget again.
	for i := 1; i < MaxAttempts; i++ {
		if got := m.Step(EventFailed); got != ActionRetryAfterDelay {
			t.Fatalf("failure %d on new scope = %v, want ActionRetryAfterDelay", i, got)
		}
	}
	if got := m.Step(EventFailed); got != ActionGiveUp {
		t.Fatalf("final failure on new scope = %v, want ActionGiveUp", got)
	}
}

func TestMachineScopeChangeRevivesAfterGiveUp(t *testing.T) {
	m := NewMachine()
	m.Step(EventConnect)
	for i := 0; i < MaxAttempts; i++ {
		m.Step(EventFailed)
	}
	if m.State() != StateClosed {
		t.Fatalf("state = %v, want closed", m.State())
	}

	if got := m.Step(EventScopeChanged); got != ActionDial {
		t.Fatalf("scope change after give-up = %v, want ActionDial", got)
	}
	if m.State() != StateConnecting {
		t.Fatalf("state = %v, want connecting", m.State())
	}
}

func TestMachineCloseStopsEverything(t *testing.T) {
	m := NewMachine()
	m.Step(EventConnect)
	m.Step(EventOpened)

	if got := m.Step(EventClose); got != ActionNone {
		t.Fatalf("close action = %v, want ActionNone", got)
	}
	if m.State() != StateClosed {
		t.Fatalf("state = %v, want closed", m.State())
	}
	if got := m.Step(EventFailed); got != ActionNone {
		t.Fatalf("failure after close = %v, want ActionNone", got)
	}
}
