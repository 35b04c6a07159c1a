package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/platinummonkey/idsync/pkg/contextkeys"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu     sync.Mutex
	pushed map[string][]Notice
	err    error
}

func (q *fakeQueue) PushFlash(ctx context.Context, sessionID string, notice Notice) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	if q.pushed == nil {
		q.pushed = make(map[string][]Notice)
	}
	q.pushed[sessionID] = append(q.pushed[sessionID], notice)
	return nil
}

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, &buf
}

func TestLogNotifier(t *testing.T) {
	log, buf := newTestLogger()
	n := NewLogNotifier(log)

	n.Notify(context.Background(), Notice{
		Level:     LevelError,
		Title:     "Sync Error",
		Message:   "Failed to sync user data.",
		SubjectID: "auth0|123",
		RequestID: "req-1",
		Err:       errors.New("boom"),
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"subject_id":"auth0|123"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, "Failed to sync user data.")
}

func TestLogNotifier_Levels(t *testing.T) {
	log, buf := newTestLogger()
	n := NewLogNotifier(log)

	n.Notify(context.Background(), Notice{Level: LevelWarning, Message: "careful"})
	assert.Contains(t, buf.String(), `"level":"warning"`)

	buf.Reset()
	n.Notify(context.Background(), Notice{Message: "fyi"})
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestNewLogNotifier_NilLogger(t *testing.T) {
	n := NewLogNotifier(nil)
	require.NotNil(t, n.log)
}

func TestFlashNotifier(t *testing.T) {
	t.Run("queues for session in context", func(t *testing.T) {
		q := &fakeQueue{}
		n := NewFlashNotifier(q, nil)

		ctx := contextkeys.WithSessionID(context.Background(), "sess-1")
		n.Notify(ctx, Notice{Title: "Sync Error"})

		require.Len(t, q.pushed["sess-1"], 1)
		assert.Equal(t, "Sync Error", q.pushed["sess-1"][0].Title)
	})

	t.Run("drops without session", func(t *testing.T) {
		q := &fakeQueue{}
		n := NewFlashNotifier(q, nil)

		n.Notify(context.Background(), Notice{Title: "Sync Error"})
		assert.Empty(t, q.pushed)
	})

	t.Run("queue error is logged not raised", func(t *testing.T) {
		log, buf := newTestLogger()
		q := &fakeQueue{err: errors.New("redis down")}
		n := NewFlashNotifier(q, log)

		ctx := contextkeys.WithSessionID(context.Background(), "sess-1")
		assert.NotPanics(t, func() { n.Notify(ctx, Notice{Title: "Sync Error"}) })
		assert.Contains(t, buf.String(), "failed to queue flash notice")
	})
}

func TestMulti(t *testing.T) {
	var calls []string
	a := NotifierFunc(func(ctx context.Context, n Notice) { calls = append(calls, "a:"+n.Title) })
	b := NotifierFunc(func(ctx context.Context, n Notice) { calls = append(calls, "b:"+n.Title) })

	Multi{a, nil, b}.Notify(context.Background(), Notice{Title: "x"})
	assert.Equal(t, []string{"a:x", "b:x"}, calls)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Notify(context.Background(), Notice{}) })
}
