package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xilidan/meetings/services/meeting/observability"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

type Job func(ctx context.Context)

// Pool runs asynchronous transcription jobs on a fixed number of workers.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	metrics *observability.Metrics
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queueSize int, metrics *observability.Metrics, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics,
		log:     log.With(slog.String("component", "ingest_pool")),
	}

	p.log.Debug("starting workers", slog.Int("workers", workers), slog.Int("queue_size", queueSize))
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.metrics.QueueDepth(len(p.jobs))
		job(p.ctx)
	}
}

// Submit enqueues job. It returns false when the pool is closed or full.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		p.metrics.QueueDepth(len(p.jobs))
		return true
	default:
		return false
	}
}

func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, running jobs see their context cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.log.Warn("shutdown deadline reached, cancelling in-flight jobs", slog.Int("pending", len(p.jobs)))
		p.cancel()
		<-done
		return ctx.Err()
	}
}
