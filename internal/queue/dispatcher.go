// Package queue runs jobs on a fixed pool of in-process workers.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/telemetry"
)

var (
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("dispatcher is closed")
	// ErrQueueFull is returned when the buffer has no room.
	ErrQueueFull = errors.New("dispatch queue is full")
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Processor executes one job.
type Processor interface {
	Process(ctx context.Context, jobID int64) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, jobID int64) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, jobID int64) error { return f(ctx, jobID) }

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the worker count.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the buffer size.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.size = n
		}
	}
}

// Dispatcher is a bounded FIFO queue drained by a fixed worker pool.
// Submit never waits for job completion.
type Dispatcher struct {
	proc    Processor
	workers int
	size    int
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	inFlight atomic.Int64
}

// New starts the workers.
func New(proc Processor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		proc:    proc,
		workers: defaultWorkers,
		size:    defaultQueueSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan Message, d.size)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	go func() {
		d.wg.Wait()
		close(d.done)
	}()
	return d
}

// Submit enqueues a job id. It does not block.
func (d *Dispatcher) Submit(ctx context.Context, jobID int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- newMessage(ctx, jobID, d.now()):
		metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		return errors.Wrapf(ErrQueueFull, "job %d", jobID)
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx expires first, running jobs are cancelled, the remaining
// queue is dropped and ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		telemetry.Warn("dispatch.shutdown_timeout", map[string]any{
			"queued":    len(d.queue),
			"in_flight": d.inFlight.Load(),
		})
		return ctx.Err()
	}
}

// Len returns the number of queued jobs.
func (d *Dispatcher) Len() int { return len(d.queue) }

// InFlight returns the number of jobs being processed.
func (d *Dispatcher) InFlight() int { return int(d.inFlight.Load()) }

func (d *Dispatcher) work(worker int) {
	defer d.wg.Done()
	for msg := range d.queue {
		metrics.SetQueueDepth(len(d.queue))
		if d.ctx.Err() != nil {
			telemetry.Info("dispatch.dropped", map[string]any{"job_id": msg.JobID, "worker": worker})
			continue
		}
		d.run(worker, msg)
	}
}

func (d *Dispatcher) run(worker int, msg Message) {
	d.inFlight.Add(1)
	metrics.AddInFlight(1)
	defer func() {
		d.inFlight.Add(-1)
		metrics.AddInFlight(-1)
		if r := recover(); r != nil {
			telemetry.Error("dispatch.worker_panic", map[string]any{
				"job_id": msg.JobID,
				"worker": worker,
				"panic":  r,
			})
		}
	}()

	ctx := telemetry.WithRequestID(d.ctx, msg.RequestID)
	if err := d.proc.Process(ctx, msg.JobID); err != nil {
		telemetry.Error("dispatch.worker", map[string]any{
			"job_id":     msg.JobID,
			"worker":     worker,
			"request_id": msg.RequestID,
			"queue_ms":   msg.Wait(d.now()).Milliseconds(),
			"error":      err.Error(),
		})
	}
}
