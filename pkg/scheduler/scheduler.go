// Package scheduler abstracts periodic timers so components driven by
// heartbeats and polling can be tested against virtual time.
package scheduler

import (
	"sync"
	"time"
)

// CancelFunc stops a repeating task. Safe to call more than once.
type CancelFunc func()

// Scheduler runs a function repeatedly at a fixed interval until cancelled.
type Scheduler interface {
	Repeat(interval time.Duration, fn func()) CancelFunc
}

// =============================================================================
// Ticker - wall-clock implementation
// =============================================================================

// Ticker is the production Scheduler backed by time.Ticker.
type Ticker struct{}

// NewTicker creates a wall-clock scheduler.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Repeat runs fn every interval on its own goroutine until cancelled.
func (t *Ticker) Repeat(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// =============================================================================
// Manual - virtual-time implementation for tests
// =============================================================================

type manualTask struct {
	interval  time.Duration
	nextAt    time.Duration
	fn        func()
	cancelled bool
}

// Manual is a Scheduler driven explicitly by Advance. Tasks run inline on the
// goroutine calling Advance, in due order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

// NewManual creates a virtual-time scheduler starting at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Repeat registers a task; it first fires one interval after registration.
func (m *Manual) Repeat(interval time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &manualTask{
		interval: interval,
		nextAt:   m.now + interval,
		fn:       fn,
	}
	m.tasks = append(m.tasks, task)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// Advance moves virtual time forward, firing every due task in order. A task
// due several times within d fires once per missed interval.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d

	for {
		var next *manualTask
		for _, task := range m.tasks {
			if task.cancelled || task.nextAt > target {
				continue
			}
			if next == nil || task.nextAt < next.nextAt {
				next = task
			}
		}
		if next == nil {
			break
		}

		m.now = next.nextAt
		next.nextAt += next.interval
		fn := next.fn

		// Run outside the lock so tasks may register or cancel.
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}
