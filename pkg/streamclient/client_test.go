package streamclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeConn struct {
	payloads chan []byte
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{payloads: make(chan []byte, 8)}
}

func (c *fakeConn) Recv() ([]byte, error) {
	p, ok := <-c.payloads
	if !ok {
		return nil, errors.New("connection dropped")
	}
	return p, nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.payloads) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	dials []string
	// outcomes are consumed per dial; nil conn means dial error.
	outcomes []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, scope string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, scope)
	if len(d.outcomes) == 0 {
		return nil, errors.New("dial refused")
	}
	next := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	if next == nil {
		return nil, errors.New("dial refused")
	}
	return next, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) dialScopes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

func noDelay(_ context.Context) error { return nil }

func TestClientStopsAfterBudgetExhausted(t *testing.T) {
	dialer := &fakeDialer{} // every dial refused
	client := NewClient(dialer, "edition:1", func(string, []byte) {}, zerolog.Nop())
	client.retryDelay = noDelay

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	// Run blocks in give-up once the budget is spent.
	deadline := time.After(2 * time.Second)
	for dialer.dialCount() < MaxAttempts {
		select {
		case <-deadline:
			t.Fatalf("dials = %d, want %d", dialer.dialCount(), MaxAttempts)
		case <-time.After(time.Millisecond):
		}
	}

	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != MaxAttempts {
		t.Fatalf("dials = %d, want exactly %d", got, MaxAttempts)
	}
	if client.State() != StateClosed {
		t.Fatalf("state = %v, want closed", client.State())
	}

	cancel()
	<-done
}

func TestClientDeliversPayloadsAndReconnects(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{outcomes: []*fakeConn{first, second}}

	var mu sync.Mutex
	var got []string
	client := NewClient(dialer, "conversation:7", func(_ string, p []byte) {
		mu.Lock()
		got = append(got, string(p))
		mu.Unlock()
	}, zerolog.Nop())
	client.retryDelay = noDelay

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	first.payloads <- []byte("a")
	first.payloads <- []byte("b")
	time.Sleep(20 * time.Millisecond)
	first.Close() // drop the connection

	second.payloads <- []byte("c")

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("received %d payloads, want 3", n)
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("payloads = %v, want [a b c]", got)
	}
}

func TestClientScopeChangeRedials(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{outcomes: []*fakeConn{first, second}}

	client := NewClient(dialer, "edition:1", func(string, []byte) {}, zerolog.Nop())
	client.retryDelay = noDelay

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	deadline := time.After(2 * time.Second)
	for dialer.dialCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("first dial never happened")
		case <-time.After(time.Millisecond):
		}
	}

	client.SetScope("edition:2")

	for dialer.dialCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("redial after scope change never happened")
		case <-time.After(time.Millisecond):
		}
	}

	scopes := dialer.dialScopes()
	if scopes[0] != "edition:1" || scopes[1] != "edition:2" {
		t.Fatalf("dial scopes = %v, want [edition:1 edition:2]", scopes)
	}
	if client.Attempts() != 0 {
		t.Fatalf("attempts after scope change = %d, want 0", client.Attempts())
	}
}

func TestClientScopeChangeRestartsAfterGiveUp(t *testing.T) {
	dialer := &fakeDialer{}
	client := NewClient(dialer, "edition:1", func(string, []byte) {}, zerolog.Nop())
	client.retryDelay = noDelay

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	deadline := time.After(2 * time.Second)
	for dialer.dialCount() < MaxAttempts {
		select {
		case <-deadline:
			t.Fatal("budget never exhausted")
		case <-time.After(time.Millisecond):
		}
	}

	dialer.mu.Lock()
	dialer.outcomes = []*fakeConn{newFakeConn()}
	dialer.mu.Unlock()

	client.SetScope("edition:9")

	for dialer.dialCount() < MaxAttempts+1 {
		select {
		case <-deadline:
			t.Fatal("scope change did not revive the client")
		case <-time.After(time.Millisecond):
		}
	}
	if client.State() != StateOpen {
		t.Fatalf("state = %v, want open", client.State())
	}
}
