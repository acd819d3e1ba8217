// Package session wires the realtime channels of one signed-in user to the
// presence machine, the notification feed and the push manager.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/realtime"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("session already started")

const handlerTimeout = 10 * time.Second

// Bus is the realtime subscription surface.
type Bus interface {
	Subscribe(channel model.Channel, h realtime.Handler)
	Unsubscribe(channel model.Channel)
}

// Presence is the part of the presence machine the session drives.
type Presence interface {
	Load(ctx context.Context) error
	Logout()
}

// Feed is the notification store lifecycle plus ingestion.
type Feed interface {
	Init(ctx context.Context, userID string) error
	Teardown(ctx context.Context) error
	Ingest(ctx context.Context, ev realtime.NotificationEvent) error
}

// Refetcher is the presence refetch loop.
type Refetcher interface {
	Start() tea.Cmd
	Stop()
	Trigger()
}

// Pusher is the push subscription manager.
type Pusher interface {
	Start(ctx context.Context) error
}

// Identity names the signed-in user. EmployeeID is what operational
// channel payloads carry; UserID scopes the notification channels.
type Identity struct {
	UserID     string
	EmployeeID string
}

// Session owns the channel subscriptions of one user.
type Session struct {
	id       Identity
	bus      Bus
	presence Presence
	feed     Feed
	poller   Refetcher
	push     Pusher
	logger   *zap.Logger

	mu        sync.Mutex
	started   bool
	channels  []model.Channel
	onReport  []func(realtime.ReportEvent)
	onNotify  []func(realtime.NotificationEvent)
	onLogout  []func()
	loggedOut bool
}

// Option configures a Session.
type Option func(*Session)

// WithPush runs p once during Start.
func WithPush(p Pusher) Option {
	return func(s *Session) { s.push = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session. Nothing is subscribed until Start.
func New(id Identity, bus Bus, p Presence, feed Feed, poller Refetcher, opts ...Option) *Session {
	if id.EmployeeID == "" {
		id.EmployeeID = id.UserID
	}
	s := &Session{
		id:       id,
		bus:      bus,
		presence: p,
		feed:     feed,
		poller:   poller,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session")
	return s
}

// Start hydrates the feed, loads presence, subscribes every channel, starts
// the refetch loop and finally runs the push manager once. Push failures
// are logged and never returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.loggedOut = false
	s.mu.Unlock()

	if err := s.feed.Init(ctx, s.id.UserID); err != nil {
		s.abort()
		return fmt.Errorf("initializing notifications: %w", err)
	}
	if err := s.presence.Load(ctx); err != nil {
		s.abort()
		return fmt.Errorf("loading presence: %w", err)
	}

	for _, kind := range model.NotificationKinds {
		s.subscribe(model.NotificationChannel(kind, s.id.UserID), s.handleNotification)
	}
	for _, c := range []model.Channel{model.ChannelPunchIn, model.ChannelPunchOut, model.ChannelNewBreak} {
		s.subscribe(c, s.handlePresence)
	}
	s.subscribe(model.ChannelLogout, s.handleLogout)
	for _, c := range []model.Channel{model.ChannelReportCreated, model.ChannelReportUpdated, model.ChannelReportDeleted} {
		s.subscribe(c, s.handleReport)
	}

	s.poller.Start()

	if s.push != nil {
		if err := s.push.Start(ctx); err != nil {
			s.logger.Warn("push subscription failed", zap.Error(err))
		}
	}

	s.logger.Info("session started", zap.String("user_id", s.id.UserID))
	return nil
}

func (s *Session) abort() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// Stop unsubscribes every channel, stops the refetch loop and flushes the
// notification feed.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	channels := s.channels
	s.channels = nil
	s.mu.Unlock()

	for _, c := range channels {
		s.bus.Unsubscribe(c)
	}
	s.poller.Stop()
	return s.feed.Teardown(ctx)
}

// WatchComments applies comments of ticketID to fn as they arrive. The
// returned func stops watching.
func (s *Session) WatchComments(ticketID string, fn func(realtime.CommentEvent)) func() {
	c := model.CommentChannel(ticketID)
	s.subscribe(c, func(ev realtime.Event) {
		if ce, ok := ev.(realtime.CommentEvent); ok {
			fn(ce)
		}
	})
	return func() {
		s.mu.Lock()
		for i, ch := range s.channels {
			if ch == c {
				s.channels = append(s.channels[:i], s.channels[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		s.bus.Unsubscribe(c)
	}
}

// OnReport registers fn for report created, updated and deleted events.
func (s *Session) OnReport(fn func(realtime.ReportEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReport = append(s.onReport, fn)
}

// OnNotification registers fn for every notification after it was
// ingested into the feed. Notifications the feed refused are not passed on.
func (s *Session) OnNotification(fn func(realtime.NotificationEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNotify = append(s.onNotify, fn)
}

// OnLogout registers fn to run after a remote logout was applied.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// LoggedOut reports whether a logout event ended this session.
func (s *Session) LoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOut
}

func (s *Session) subscribe(c model.Channel, h realtime.Handler) {
	s.mu.Lock()
	s.channels = append(s.channels, c)
	s.mu.Unlock()
	s.bus.Subscribe(c, h)
}

func (s *Session) handleNotification(ev realtime.Event) {
	n, ok := ev.(realtime.NotificationEvent)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := s.feed.Ingest(ctx, n); err != nil {
		// Listeners only ever see notifications the feed holds.
		s.logger.Warn("ingesting notification", zap.String("kind", string(n.Kind)), zap.Error(err))
		return
	}

	s.mu.Lock()
	listeners := append([]func(realtime.NotificationEvent){}, s.onNotify...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(n)
	}
}

// handlePresence treats every event about this employee as a refetch hint.
func (s *Session) handlePresence(ev realtime.Event) {
	p, ok := ev.(realtime.PresenceEvent)
	if !ok || p.EmployeeID != s.id.EmployeeID {
		return
	}
	s.logger.Debug("presence hint", zap.String("kind", string(p.Kind)))
	s.poller.Trigger()
}

func (s *Session) handleLogout(ev realtime.Event) {
	l, ok := ev.(realtime.LogoutEvent)
	if !ok || l.EmployeeID != s.id.EmployeeID {
		return
	}

	s.presence.Logout()
	s.poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := s.feed.Teardown(ctx); err != nil {
		s.logger.Warn("flushing notifications on logout", zap.Error(err))
	}

	s.mu.Lock()
	s.loggedOut = true
	listeners := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	s.logger.Info("logged out remotely")
	for _, fn := range listeners {
		fn()
	}
}

func (s *Session) handleReport(ev realtime.Event) {
	r, ok := ev.(realtime.ReportEvent)
	if !ok {
		return
	}
	s.mu.Lock()
	listeners := append([]func(realtime.ReportEvent){}, s.onReport...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(r)
	}
}
