package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger() (*logrus.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	log := logrus.New()
	log.SetOutput(buf)
	return log, buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSafeGo_Success(t *testing.T) {
	executed := atomic.Bool{}

	SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	assert.Eventually(t, executed.Load, time.Second, 10*time.Millisecond)
}

func TestSafeGo_ErrorIsLogged(t *testing.T) {
	log, buf := newBufferedLogger()

	SafeGo(context.Background(), log, time.Second, "test task", func(ctx context.Context) error {
		return errors.New("test error")
	})

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "background task failed")
	}, time.Second, 10*time.Millisecond)
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	log, buf := newBufferedLogger()

	SafeGo(context.Background(), log, time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	})

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "panic in background task")
	}, time.Second, 10*time.Millisecond)
}

func TestSafeGo_Timeout(t *testing.T) {
	completed := atomic.Bool{}
	cancelled := atomic.Bool{}

	SafeGo(context.Background(), nil, 50*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(500 * time.Millisecond):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			cancelled.Store(true)
			return ctx.Err()
		}
	})

	assert.Eventually(t, cancelled.Load, time.Second, 10*time.Millisecond)
	assert.False(t, completed.Load())
}

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 2, "test pool", time.Second)

	executed := atomic.Int32{}
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			executed.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(10), executed.Load())
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 1, "test pool", time.Second)
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestWorkerPool_TrySubmitDoesNotWait(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 1, "test pool", time.Second)
	release := make(chan struct{})
	defer func() {
		close(release)
		_ = pool.Shutdown(time.Second)
	}()

	blocked := func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	var full error
	start := time.Now()
	for i := 0; i < 40 && full == nil; i++ {
		full = pool.TrySubmit(blocked)
	}
	assert.ErrorIs(t, full, ErrPoolFull)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWorkerPool_TrySubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 1, "test pool", time.Second)
	require.NoError(t, pool.Shutdown(time.Second))

	assert.ErrorIs(t, pool.TrySubmit(func(ctx context.Context) error { return nil }), ErrPoolShutdown)
}

func TestWorkerPool_ShutdownIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 1, "test pool", time.Second)
	require.NoError(t, pool.Shutdown(time.Second))
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 1, "test pool", time.Second)

	executed := atomic.Bool{}
	require.NoError(t, pool.Submit(func(ctx context.Context) error { panic("boom") }))
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	require.NoError(t, pool.Shutdown(time.Second))
	assert.True(t, executed.Load())
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), nil, 1, "test pool", 5*time.Second)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		return nil
	}))

	err := pool.Shutdown(20 * time.Millisecond)
	assert.Error(t, err)
}
