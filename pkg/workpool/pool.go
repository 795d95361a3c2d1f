// Package workpool provides a bounded worker pool for background dispatch
// jobs, built on go-pkgz/pool.
package workpool

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

const closeTimeout = 30 * time.Second

// Job is one unit of background work.
type Job func(ctx context.Context)

type jobWorker struct{}

// Do implements pool.Worker.
func (w *jobWorker) Do(ctx context.Context, job Job) error {
	job(ctx)
	return nil
}

// Pool runs jobs on a fixed number of workers. Bulk push fan-out goes
// through here so one slow push endpoint never serializes a broadcast.
type Pool struct {
	workers int
	group   *pool.WorkerGroup[Job]
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewPool creates a pool; call Start before submitting.
func NewPool(workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		log:     log.With().Str("component", "workpool").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.group = pool.New[Job](p.workers, &jobWorker{}).WithContinueOnError()
	if err := p.group.Go(p.ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to start worker pool")
		return
	}

	p.started = true
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")
}

// Submit queues a job. Returns false if the pool is not running; callers
// then run the job inline.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return false
	}
	p.group.Submit(job)
	return true
}

// Stop drains queued jobs within a bounded timeout.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
	defer closeCancel()

	if err := p.group.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	p.cancel()
	p.log.Info().Msg("worker pool stopped")
}
