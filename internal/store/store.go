package store

import (
	"context"
	"errors"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// WorkerRegistration records the background worker installed for a scope.
type WorkerRegistration struct {
	Scope        string    `db:"scope"`
	ScriptURL    string    `db:"script_url"`
	RegisteredAt time.Time `db:"registered_at"`
}

// Store defines the durable per-user storage of the client: whole-value
// snapshots keyed by name, the background worker registration, and the
// device's push subscription.
type Store interface {
	// === Snapshots ===

	GetSnapshot(ctx context.Context, key string) ([]byte, error)
	PutSnapshot(ctx context.Context, key string, value []byte) error
	DeleteSnapshot(ctx context.Context, key string) error

	// === Worker registration ===

	RegisterWorker(ctx context.Context, reg WorkerRegistration) error
	GetWorker(ctx context.Context, scope string) (*WorkerRegistration, error)

	// === Push subscription ===

	SavePushSubscription(ctx context.Context, scope string, sub *webpush.Subscription) error
	GetPushSubscription(ctx context.Context, scope string) (*webpush.Subscription, error)
	DeletePushSubscription(ctx context.Context, scope string) error
}
