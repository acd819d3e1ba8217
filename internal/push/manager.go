// Package push keeps the device's push subscription registered with the
// server. It runs once per session and only for the eligible role.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/model"
)

// ErrPermissionDenied records that the user refused notifications. Start
// never returns it; it only appears in logs.
var ErrPermissionDenied = errors.New("push permission denied")

// Permission is the platform's notification permission.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Platform is the device side of push: the background worker registration
// and the local subscription.
type Platform interface {
	// RegisterWorker installs the worker script for scope. It is a no-op
	// when the same script is already registered.
	RegisterWorker(ctx context.Context, scriptURL, scope string) error

	// Subscription returns the existing subscription, or nil when there is none.
	Subscription(ctx context.Context) (*webpush.Subscription, error)

	RequestPermission(ctx context.Context) (Permission, error)

	// Subscribe creates a subscription bound to the server's public key.
	Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error)

	// Unsubscribe revokes the local subscription.
	Unsubscribe(ctx context.Context) error
}

// Registry is the server subscription registry.
type Registry interface {
	VAPIDPublicKey(ctx context.Context) (string, error)
	SubscribePush(ctx context.Context, rec model.PushSubscriptionRecord) error
	UnsubscribePush(ctx context.Context, rec model.PushSubscriptionRecord) error
}

// Config selects who gets push and which worker serves it.
type Config struct {
	Enabled      bool
	UserID       string
	Role         string
	EligibleRole string
	WorkerScript string
	WorkerScope  string
}

// Manager runs the subscription protocol.
type Manager struct {
	platform Platform
	registry Registry
	cfg      Config
	logger   *zap.Logger

	mu         sync.Mutex
	started    bool
	subscribed bool
	current    *webpush.Subscription
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager. Nothing happens until Start.
func NewManager(platform Platform, registry Registry, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		platform: platform,
		registry: registry,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("push")
	return m
}

// Eligible reports whether this session's role receives push. The role is
// read once from Config and never re-evaluated.
func (m *Manager) Eligible() bool {
	return m.cfg.Enabled && m.cfg.Role != "" && m.cfg.Role == m.cfg.EligibleRole
}

// Start runs the protocol at most once per Manager. A denied permission is
// not an error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if !m.Eligible() {
		m.logger.Debug("push not enabled for role", zap.String("role", m.cfg.Role))
		return nil
	}

	if err := m.platform.RegisterWorker(ctx, m.cfg.WorkerScript, m.cfg.WorkerScope); err != nil {
		return fmt.Errorf("registering worker: %w", err)
	}

	existing, err := m.platform.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("reading subscription: %w", err)
	}
	if existing != nil {
		// Re-push so a server that lost its record gets it back.
		if err := m.registry.SubscribePush(ctx, model.NewPushSubscriptionRecord(existing, m.cfg.UserID)); err != nil {
			return fmt.Errorf("re-registering subscription: %w", err)
		}
		m.setSubscribed(existing)
		m.logger.Info("push subscription re-registered")
		return nil
	}

	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("requesting permission: %w", err)
	}
	if perm != PermissionGranted {
		m.logger.Info("push disabled", zap.Error(ErrPermissionDenied), zap.Stringer("permission", perm))
		return nil
	}

	key, err := m.registry.VAPIDPublicKey(ctx)
	if err != nil {
		return fmt.Errorf("fetching public key: %w", err)
	}
	sub, err := m.platform.Subscribe(ctx, key)
	if err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}
	if err := m.registry.SubscribePush(ctx, model.NewPushSubscriptionRecord(sub, m.cfg.UserID)); err != nil {
		return fmt.Errorf("registering subscription: %w", err)
	}
	m.setSubscribed(sub)
	m.logger.Info("push subscription created")
	return nil
}

// Unsubscribe revokes the local subscription, then tells the server. A
// server failure is logged and not returned.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	sub := m.current
	m.mu.Unlock()

	if sub == nil {
		existing, err := m.platform.Subscription(ctx)
		if err != nil {
			return fmt.Errorf("reading subscription: %w", err)
		}
		if existing == nil {
			return nil
		}
		sub = existing
	}

	if err := m.platform.Unsubscribe(ctx); err != nil {
		return fmt.Errorf("revoking subscription: %w", err)
	}

	m.mu.Lock()
	m.subscribed = false
	m.current = nil
	m.mu.Unlock()

	if err := m.registry.UnsubscribePush(ctx, model.NewPushSubscriptionRecord(sub, m.cfg.UserID)); err != nil {
		m.logger.Warn("server unsubscribe failed", zap.Error(err))
	}
	return nil
}

// IsSubscribed reports whether a subscription is registered.
func (m *Manager) IsSubscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

func (m *Manager) setSubscribed(sub *webpush.Subscription) {
	m.mu.Lock()
	m.subscribed = true
	m.current = sub
	m.mu.Unlock()
}
