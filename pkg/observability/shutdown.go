package observability

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs registered cleanup steps when the process is asked
// to stop. Steps run in reverse registration order, so a component
// registered after its dependencies is stopped before them.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []namedShutdown
	once  sync.Once
	err   error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NewLogger(InfoLevel, nil)
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a named cleanup step
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.steps = append(sm.steps, namedShutdown{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT, SIGTERM or ctx cancellation and then
// runs Shutdown.
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	sm.logger.Info("Shutdown requested, stopping gracefully")
	return sm.Shutdown()
}

// Shutdown runs every step once within the configured timeout. Later calls
// return the first result.
func (sm *ShutdownManager) Shutdown() error {
	sm.once.Do(func() {
		sm.err = sm.run()
	})
	return sm.err
}

func (sm *ShutdownManager) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	steps := append([]namedShutdown(nil), sm.steps...)
	sm.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if ctx.Err() != nil {
			sm.logger.WithField("step", step.name).Warn("Shutdown timeout reached, skipping step")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, ctx.Err()))
			continue
		}

		log := sm.logger.WithField("step", step.name)
		if err := step.fn(ctx); err != nil {
			log.WithError(err).Error("Shutdown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		log.Debug("Shutdown step complete")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
