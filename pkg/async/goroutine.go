package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPoolShutdown is returned by Submit after Shutdown
	ErrPoolShutdown = errors.New("worker pool shut down")
	// ErrPoolFull is returned by TrySubmit when the queue has no room
	ErrPoolFull = errors.New("worker pool queue full")
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, log, time.Minute, "session janitor", func(ctx context.Context) error {
//	    return app.sweep(ctx)
//	})
func SafeGo(parentCtx context.Context, log *logrus.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if log == nil {
		log = logrus.New()
	}
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// WorkerPool manages a pool of workers that process tasks from a channel.
// Tasks run in submission order per worker; completion order across workers
// is not guaranteed.
type WorkerPool struct {
	workers  int
	taskName string
	timeout  time.Duration
	log      *logrus.Logger

	mu       sync.RWMutex
	closed   bool
	workCh   chan func(context.Context) error
	doneCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown sync.Once
}

// NewWorkerPool creates a new worker pool.
//
// Example:
//
//	pool := NewWorkerPool(ctx, log, 4, "user sync", 10*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return store.Upsert(ctx, record)
//	})
func NewWorkerPool(ctx context.Context, log *logrus.Logger, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if log == nil {
		log = logrus.New()
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		log:      log,
		workCh:   make(chan func(context.Context) error, workers*16),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit adds a task to the worker pool. It blocks while the queue is full
// and returns ErrPoolShutdown once the pool is closed.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutdown
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolShutdown
	}
}

// TrySubmit queues a task without waiting. It returns ErrPoolFull when the
// queue is full and ErrPoolShutdown once the pool is closed.
func (p *WorkerPool) TrySubmit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.ctx.Err() != nil {
		return ErrPoolShutdown
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown stops accepting work and waits up to timeout for queued tasks
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdown.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(id, fn)
		}
	}
}

func (p *WorkerPool) run(id int, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"task":   p.taskName,
				"worker": id,
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("panic in worker")
		}
	}()

	if err := fn(ctx); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"task":   p.taskName,
			"worker": id,
		}).Warn("worker task failed")
	}
}
