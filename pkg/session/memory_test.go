package session

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|123", DisplayName: "Ann"})
	require.NoError(t, err)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Claims.DisplayName)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_NewSessionPerLogin(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	a, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|123"})
	require.NoError(t, err)
	b, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|123"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestMemoryStore_Flash(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|123"})
	require.NoError(t, err)

	require.NoError(t, store.PushFlash(ctx, sess.ID, notify.Notice{Title: "Sync Error"}))

	notices, err := store.PopFlash(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "Sync Error", notices[0].Title)

	notices, err = store.PopFlash(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestMemoryStore_FlashUnknownSession(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)

	err := store.PushFlash(context.Background(), "missing", notify.Notice{})
	assert.ErrorIs(t, err, ErrNotFound)

	notices, err := store.PopFlash(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	old, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|1"})
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	_, err = store.Create(ctx, identity.Claims{SubjectID: "auth0|2"})
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, store.DeleteExpired())

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Capacity(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	ctx := context.Background()

	first, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|1"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := store.Create(ctx, identity.Claims{SubjectID: "auth0|n"})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, store.Len())
	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_State(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.State().Authenticated)

	s := &Session{Claims: identity.Claims{SubjectID: "auth0|1"}}
	assert.True(t, s.State().Ready())
}
