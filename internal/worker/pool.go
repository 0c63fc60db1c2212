package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vytor/lingorun/internal/logger"
)

// ErrPoolClosed is returned when submitting to a stopped pool.
var ErrPoolClosed = errors.New("worker pool is closed")

type Job interface {
	Run(context.Context) error
	Name() string
}

type funcJob struct {
	name string
	fn   func(context.Context) error
}

func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }
func (j funcJob) Name() string                  { return j.name }

// NewJob adapts a function into a Job.
func NewJob(name string, fn func(context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Pool runs submitted jobs on a fixed number of goroutines. Stopping the pool
// cancels the context handed to in-flight jobs and drops queued ones.
type Pool struct {
	jobs    chan Job
	done    chan struct{}
	wg      sync.WaitGroup
	workers int
	queue   int
	cancel  context.CancelFunc
	log     *logger.Logger

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

func NewPool(name string, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if name == "" {
		name = "worker-pool"
	}
	log := logger.Default().WithPrefix(name)
	log.Debug("creating worker pool with %d workers and queue size %d", workers, queueSize)
	return &Pool{
		jobs:    make(chan Job, queueSize),
		done:    make(chan struct{}),
		workers: workers,
		queue:   queueSize,
		log:     log,
	}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.log.Info("starting worker pool with %d workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			workerLog := p.log.WithField("worker_id", id)
			workerLog.Debug("worker started")

			for {
				select {
				case <-ctx.Done():
					workerLog.Debug("worker shutting down (context cancelled)")
					return
				case job, ok := <-p.jobs:
					if !ok {
						workerLog.Debug("worker shutting down (queue closed)")
						return
					}
					p.run(ctx, workerLog, job)
				}
			}
		}(i + 1)
	}
}

func (p *Pool) run(ctx context.Context, workerLog *logger.Logger, job Job) {
	jobLog := workerLog.WithField("job", job.Name())
	jobLog.Debug("starting job")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			jobLog.Error("job panicked after %v: %v", time.Since(start), r)
		}
	}()

	jobCtx := logger.NewContext(ctx, jobLog)
	if err := job.Run(jobCtx); err != nil {
		jobLog.Warn("job failed after %v: %v", time.Since(start), err)
		return
	}
	jobLog.Debug("job completed in %v", time.Since(start))
}

// Stop cancels running jobs, discards the queue and waits for workers to exit.
// It is safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.log.Info("stopping worker pool")
		close(p.done)
		if p.cancel != nil {
			p.cancel()
		}
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		p.log.Info("worker pool stopped")
	})
}

// Submit queues job, blocking while the queue is full until ctx is done or the pool stops.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.log.Debug("submitting job: %s", job.Name())
	select {
	case p.jobs <- job:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues job without blocking. It returns false when the queue is
// full or the pool is stopped.
func (p *Pool) TrySubmit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		p.log.Debug("submitted job: %s", job.Name())
		return true
	default:
		p.log.Warn("queue full (%d), dropping job: %s", p.queue, job.Name())
		return false
	}
}

// QueueSize returns the current number of pending jobs.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}
