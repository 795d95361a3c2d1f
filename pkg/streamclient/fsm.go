// Package streamclient implements the client-side reconnection policy for the
// event streams. The state machine is kept pure so the retry rules can be
// tested without timers or sockets; Client drives it against a real dialer.
package streamclient

import "time"

// Retry policy. The delay is fixed, not exponential: the streams are cheap to
// re-establish and the server tolerates reconnect storms.
const (
	RetryDelay  = 3000 * time.Millisecond
	MaxAttempts = 5
)

// State is the connection lifecycle state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Event is an input to the state machine.
type Event int

const (
	// EventConnect is an explicit request to start connecting.
	EventConnect Event = iota
	// EventOpened reports a successful dial.
	EventOpened
	// EventFailed reports a dial failure or a dropped connection.
	EventFailed
	// EventScopeChanged reports that the client wants a different scope.
	// Switching scope is a deliberate move, so it never consumes retry budget.
	EventScopeChanged
	// EventClose is an explicit request to stop for good.
	EventClose
)

// Action tells the driver what to do after a transition.
type Action int

const (
	ActionNone Action = iota
	// ActionDial means attempt a connection now.
	ActionDial
	// ActionRetryAfterDelay means attempt again after RetryDelay.
	ActionRetryAfterDelay
	// ActionGiveUp means the retry budget is exhausted; stay closed until an
	// explicit EventConnect or EventScopeChanged.
	ActionGiveUp
)

// Machine holds retry state between transitions.
type Machine struct {
	state    State
	attempts int
}

// NewMachine starts in StateClosed with a fresh retry budget.
func NewMachine() *Machine {
	return &Machine{state: StateClosed}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Attempts returns consecutive failed attempts since the last success.
func (m *Machine) Attempts() int { return m.attempts }

// Step applies an event and returns the action the driver must take.
func (m *Machine) Step(event Event) Action {
	switch event {
	case EventConnect:
		if m.state == StateOpen {
			return ActionNone
		}
		m.state = StateConnecting
		m.attempts = 0
		return ActionDial

	case EventOpened:
		if m.state != StateConnecting {
			return ActionNone
		}
		m.state = StateOpen
		m.attempts = 0
		return ActionNone

	case EventFailed:
		if m.state == StateClosed {
			return ActionNone
		}
		m.attempts++
		if m.attempts >= MaxAttempts {
			m.state = StateClosed
			return ActionGiveUp
		}
		m.state = StateConnecting
		return ActionRetryAfterDelay

	case EventScopeChanged:
		// A fresh scope gets a fresh budget, even after a give-up.
		m.state = StateConnecting
		m.attempts = 0
		return ActionDial

	case EventClose:
		m.state = StateClosed
		m.attempts = 0
		return ActionNone
	}

	return ActionNone
}
