package streamclient

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Conn is one established stream. Recv blocks until the next event payload or
// a transport error.
type Conn interface {
	Recv() ([]byte, error)
	Close() error
}

// Dialer opens a stream for a scope key such as "edition:12" or
// "conversation:7".
type Dialer interface {
	Dial(ctx context.Context, scope string) (Conn, error)
}

// Client keeps one scoped stream alive, reconnecting per the Machine's
// policy, and hands every received payload to the handler.
type Client struct {
	dialer  Dialer
	handler func(scope string, payload []byte)
	log     zerolog.Logger

	retryDelay func(ctx context.Context) error

	mu    sync.Mutex
	fsm   *Machine
	scope string
	conn  Conn
	wake  chan struct{}
}

// NewClient creates a client for the initial scope. Run must be called to
// start it.
func NewClient(dialer Dialer, scope string, handler func(scope string, payload []byte), log zerolog.Logger) *Client {
	c := &Client{
		dialer:  dialer,
		handler: handler,
		log:     log.With().Str("component", "stream_client").Logger(),
		fsm:     NewMachine(),
		scope:   scope,
		wake:    make(chan struct{}, 1),
	}
	c.retryDelay = func(ctx context.Context) error {
		t := time.NewTimer(RetryDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	return c
}

// SetScope switches the stream to a different scope. The current connection
// is dropped and a new dial starts immediately with a fresh retry budget.
func (c *Client) SetScope(scope string) {
	c.mu.Lock()
	if scope == c.scope {
		c.mu.Unlock()
		return
	}
	c.scope = scope
	c.fsm.Step(EventScopeChanged)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drives the connection until ctx is cancelled or the retry budget is
// spent. It returns ctx.Err() on cancellation, nil when it gave up.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	action := c.fsm.Step(EventConnect)
	c.mu.Unlock()

	for {
		switch action {
		case ActionDial:
			action = c.dialOnce(ctx)

		case ActionRetryAfterDelay:
			if err := c.retryDelay(ctx); err != nil {
				return err
			}
			action = ActionDial

		case ActionGiveUp:
			c.log.Warn().Str("scope", c.currentScope()).Int("attempts", MaxAttempts).
				Msg("stream reconnect budget exhausted")
			// Only a scope change restarts the loop now.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
				action = ActionDial
			}

		default:
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Client) dialOnce(ctx context.Context) Action {
	scope := c.currentScope()

	conn, err := c.dialer.Dial(ctx, scope)
	if err != nil {
		c.log.Debug().Err(err).Str("scope", scope).Msg("stream dial failed")
		return c.step(EventFailed)
	}

	if !c.adopt(scope, conn) {
		// Scope changed while dialing. The dial was not a failure.
		conn.Close()
		return c.step(EventScopeChanged)
	}
	c.step(EventOpened)

	for {
		payload, err := conn.Recv()
		if err != nil {
			break
		}
		c.handler(scope, payload)
	}
	conn.Close()

	c.mu.Lock()
	scopeChanged := c.scope != scope
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	if ctx.Err() != nil {
		return ActionNone
	}
	if scopeChanged {
		return c.step(EventScopeChanged)
	}
	return c.step(EventFailed)
}

// adopt installs conn unless the scope moved underneath the dial.
func (c *Client) adopt(scope string, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope != scope {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) step(event Event) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.Step(event)
}

func (c *Client) currentScope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// State reports the machine state, for health introspection.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.State()
}

// Attempts reports consecutive failed attempts since the last success.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.Attempts()
}
