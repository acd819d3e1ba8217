// Package notify holds the in-app notification feed of the signed-in user.
//
// The feed is one explicit object with an Init (hydrate) and Teardown
// (flush) lifecycle. Every mutation rewrites the whole persisted snapshot
// under NotificationsKey(userID). Independent processes sharing the same
// database overwrite each other last-write-wins.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/realtime"
	"github.com/nhle/workpresence/internal/store"
)

// ErrNotInitialized is returned by mutations before Init or after Teardown.
var ErrNotInitialized = errors.New("notification store not initialized")

// Persister is the durable snapshot storage the feed writes through.
type Persister interface {
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
	PutSnapshot(ctx context.Context, key string, value []byte) error
}

// Listener is called after every change with the new unread count.
type Listener func(unread int)

// Store is the notification feed. Items are ordered newest first.
type Store struct {
	persist Persister
	now     func() time.Time
	logger  *zap.Logger

	mu        sync.Mutex
	userID    string
	items     []model.NotificationItem
	unread    int
	listeners []Listener
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time stamped on ingested items.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty, uninitialized feed.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persist: p,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("notify")
	return s
}

// Init hydrates the feed of userID from durable storage. A missing snapshot
// starts an empty feed.
func (s *Store) Init(ctx context.Context, userID string) error {
	var items []model.NotificationItem

	data, err := s.persist.GetSnapshot(ctx, model.NotificationsKey(userID))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading notifications: %w", err)
	default:
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decoding notifications: %w", err)
		}
	}

	unread := 0
	for _, it := range items {
		if !it.Read {
			unread++
		}
	}

	s.mu.Lock()
	s.userID = userID
	s.items = items
	s.unread = unread
	s.mu.Unlock()

	s.logger.Debug("hydrated", zap.String("user_id", userID), zap.Int("items", len(items)), zap.Int("unread", unread))
	s.notify(unread)
	return nil
}

// Teardown flushes the feed and forgets it. The store can be initialized
// again for another user.
func (s *Store) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return nil
	}
	err := s.flushLocked(ctx)
	s.userID = ""
	s.items = nil
	s.unread = 0
	return err
}

// Ingest prepends an unread item built from ev. Duplicate deliveries produce
// duplicate items: the feed does not deduplicate.
func (s *Store) Ingest(ctx context.Context, ev realtime.NotificationEvent) error {
	item := model.NotificationItem{
		ID:         ev.ID,
		Kind:       ev.Kind,
		Message:    ev.Message,
		URL:        ev.URL,
		ReceivedAt: s.now(),
	}

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.items = append([]model.NotificationItem{item}, s.items...)
	s.unread++
	unread := s.unread
	err := s.flushLocked(ctx)
	s.mu.Unlock()

	s.notify(unread)
	return err
}

// MarkRead marks the item at index read. Marking an already read item is a
// no-op that performs no write.
func (s *Store) MarkRead(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return fmt.Errorf("notification index %d out of range [0,%d)", index, len(s.items))
	}
	if s.items[index].Read {
		s.mu.Unlock()
		return nil
	}
	s.items[index].Read = true
	if s.unread > 0 {
		s.unread--
	}
	unread := s.unread
	err := s.flushLocked(ctx)
	s.mu.Unlock()

	s.notify(unread)
	return err
}

// MarkAllRead marks every item read.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.unread == 0 {
		s.mu.Unlock()
		return nil
	}
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	err := s.flushLocked(ctx)
	s.mu.Unlock()

	s.notify(0)
	return err
}

// Items returns a copy of the feed, newest first.
func (s *Store) Items() []model.NotificationItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NotificationItem, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount returns the number of unread items.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// UserID returns the user the feed was initialized for.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// OnChange registers l to be called after every change.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) flushLocked(ctx context.Context) error {
	items := s.items
	if items == nil {
		items = []model.NotificationItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding notifications: %w", err)
	}
	if err := s.persist.PutSnapshot(ctx, model.NotificationsKey(s.userID), data); err != nil {
		s.logger.Warn("persisting notifications failed", zap.Error(err))
		return fmt.Errorf("persisting notifications: %w", err)
	}
	return nil
}

func (s *Store) notify(unread int) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(unread)
	}
}
