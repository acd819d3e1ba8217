package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/notify"
	"github.com/nhle/workpresence/internal/realtime"
	"github.com/nhle/workpresence/tests/testutil"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*notify.Store, notify.Persister) {
	t.Helper()
	db := testutil.NewTestStore(t)
	s := notify.New(db, notify.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, s.Init(context.Background(), "u1"))
	return s, db
}

func todo(msg string) realtime.NotificationEvent {
	return realtime.NotificationEvent{Kind: model.NotificationTodo, UserID: "u1", Message: msg}
}

func TestIngestCountsEveryDelivery(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Ingest(ctx, todo(fmt.Sprintf("task %d", i))))
	}
	assert.Equal(t, 5, s.UnreadCount())

	// Redelivery of the same logical event is not deduplicated.
	require.NoError(t, s.Ingest(ctx, todo("task 4")))
	assert.Equal(t, 6, s.UnreadCount())

	items := s.Items()
	require.Len(t, items, 6)
	assert.Equal(t, "task 4", items[0].Message)
	assert.Equal(t, "task 0", items[5].Message)
	assert.Equal(t, fixedNow, items[0].ReceivedAt)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Ingest(ctx, todo("a")))
	require.NoError(t, s.Ingest(ctx, todo("b")))

	require.NoError(t, s.MarkRead(ctx, 0))
	require.NoError(t, s.MarkRead(ctx, 0))
	assert.Equal(t, 1, s.UnreadCount())

	assert.Error(t, s.MarkRead(ctx, 2))
	assert.Error(t, s.MarkRead(ctx, -1))
}

func TestMarkAllRead(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Ingest(ctx, todo("a")))
	require.NoError(t, s.Ingest(ctx, todo("b")))
	require.NoError(t, s.MarkAllRead(ctx))

	assert.Equal(t, 0, s.UnreadCount())
	for _, it := range s.Items() {
		assert.True(t, it.Read)
	}
}

func TestEveryMutationRewritesSnapshot(t *testing.T) {
	ctx := context.Background()
	s, db := newStore(t)

	require.NoError(t, s.Ingest(ctx, todo("a")))
	require.NoError(t, s.Ingest(ctx, todo("b")))
	require.NoError(t, s.MarkRead(ctx, 1))

	data, err := db.GetSnapshot(ctx, model.NotificationsKey("u1"))
	require.NoError(t, err)

	var persisted []model.NotificationItem
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, "b", persisted[0].Message)
	assert.False(t, persisted[0].Read)
	assert.True(t, persisted[1].Read)
}

func TestInitHydratesUnreadCount(t *testing.T) {
	ctx := context.Background()
	s, db := newStore(t)

	require.NoError(t, s.Ingest(ctx, todo("a")))
	require.NoError(t, s.Ingest(ctx, todo("b")))
	require.NoError(t, s.Ingest(ctx, todo("c")))
	require.NoError(t, s.MarkRead(ctx, 1))

	again := notify.New(db)
	require.NoError(t, again.Init(ctx, "u1"))
	assert.Equal(t, 2, again.UnreadCount())
	assert.Len(t, again.Items(), 3)

	other := notify.New(db)
	require.NoError(t, other.Init(ctx, "u2"))
	assert.Empty(t, other.Items())
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()
	s, db := newStore(t)

	require.NoError(t, s.Ingest(ctx, todo("a")))
	require.NoError(t, s.Teardown(ctx))

	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.UnreadCount())
	assert.ErrorIs(t, s.Ingest(ctx, todo("late")), notify.ErrNotInitialized)

	_, err := db.GetSnapshot(ctx, model.NotificationsKey("u1"))
	assert.NoError(t, err)
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var counts []int
	s.OnChange(func(unread int) { counts = append(counts, unread) })

	require.NoError(t, s.Ingest(ctx, todo("a")))
	require.NoError(t, s.Ingest(ctx, todo("b")))
	require.NoError(t, s.MarkRead(ctx, 0))
	require.NoError(t, s.MarkRead(ctx, 0))

	assert.Equal(t, []int{1, 2, 1}, counts)
}

type failingPersister struct{}

func (failingPersister) GetSnapshot(context.Context, string) ([]byte, error) {
	return []byte(`[]`), nil
}

func (failingPersister) PutSnapshot(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	s := notify.New(failingPersister{})
	require.NoError(t, s.Init(ctx, "u1"))

	err := s.Ingest(ctx, todo("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, s.UnreadCount())
}
