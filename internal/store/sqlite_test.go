package store_test

import (
	"context"
	"path/filepath"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/store"
	"github.com/nhle/workpresence/tests/testutil"
)

func TestMigrations(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestReopenDoesNotRemigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutSnapshot(context.Background(), "k", []byte("v")))
	require.NoError(t, s.Close())

	s2, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetSnapshot(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.GetSnapshot(ctx, "notifications-u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutSnapshot(ctx, "notifications-u1", []byte(`[1]`)))
	require.NoError(t, s.PutSnapshot(ctx, "notifications-u1", []byte(`[2,1]`)))

	got, err := s.GetSnapshot(ctx, "notifications-u1")
	require.NoError(t, err)
	assert.Equal(t, `[2,1]`, string(got))

	require.NoError(t, s.DeleteSnapshot(ctx, "notifications-u1"))
	require.NoError(t, s.DeleteSnapshot(ctx, "notifications-u1"))
	_, err = s.GetSnapshot(ctx, "notifications-u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkerAndSubscription(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.GetWorker(ctx, "/")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RegisterWorker(ctx, store.WorkerRegistration{Scope: "/", ScriptURL: "/sw.js"}))
	require.NoError(t, s.RegisterWorker(ctx, store.WorkerRegistration{Scope: "/", ScriptURL: "/sw.js"}))

	reg, err := s.GetWorker(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "/sw.js", reg.ScriptURL)
	assert.False(t, reg.RegisteredAt.IsZero())

	sub := &webpush.Subscription{
		Endpoint: "https://push.example/device-1",
		Keys:     webpush.Keys{P256dh: "pub", Auth: "secret"},
	}
	require.NoError(t, s.SavePushSubscription(ctx, "/", sub))

	got, err := s.GetPushSubscription(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	require.NoError(t, s.DeletePushSubscription(ctx, "/"))
	_, err = s.GetPushSubscription(ctx, "/")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
