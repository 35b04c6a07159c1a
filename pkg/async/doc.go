// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and logging through logrus.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, log, time.Minute, "session janitor", func(ctx context.Context) error {
//		return app.sweep(ctx)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, log, 4, "user sync", 10*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		reconciler.Sync(ctx, claims)
//		return nil
//	})
//
// # Related Packages
//
//   - pkg/reconcile: Dispatcher runs user syncs on a WorkerPool
//   - cmd/idsync: SafeGo for the session janitor
package async
