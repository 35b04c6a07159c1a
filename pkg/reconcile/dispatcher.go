package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/idsync/pkg/async"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/sirupsen/logrus"
)

// Dispatcher runs syncs on a worker pool so the request path never waits
// for storage.
type Dispatcher struct {
	reconciler *Reconciler
	pool       *async.WorkerPool
	timeout    time.Duration
	log        *logrus.Logger
}

// NewDispatcher starts workers goroutines, each bounding a sync to timeout
func NewDispatcher(ctx context.Context, reconciler *Reconciler, workers int, timeout time.Duration, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		reconciler: reconciler,
		pool:       async.NewWorkerPool(ctx, log, workers, "user sync", timeout),
		timeout:    timeout,
		log:        log,
	}
}

// Dispatch queues a sync of claims without waiting. It matches
// observer.Trigger.
//
// The sync keeps the values of ctx (session, request ID) but not its
// cancellation, so a finished request does not abort an in-flight sync.
// When the queue is full the sync is dropped and reported as a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, claims identity.Claims) {
	detached := context.WithoutCancel(ctx)

	err := d.pool.TrySubmit(func(poolCtx context.Context) error {
		syncCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()

		d.reconciler.Sync(syncCtx, claims)
		return nil
	})
	if errors.Is(err, async.ErrPoolFull) {
		d.reconciler.reject(detached, claims, ReasonBackpressure, err)
		return
	}
	if err != nil {
		d.log.WithError(err).WithField("subject_id", claims.SubjectID).Warn("dropped user sync, dispatcher is shut down")
	}
}

// Shutdown stops accepting syncs and waits up to timeout for queued ones
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	return d.pool.Shutdown(timeout)
}
