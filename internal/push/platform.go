package push

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"github.com/nhle/workpresence/internal/store"
)

// Prompt asks the user whether notifications are allowed.
type Prompt func(ctx context.Context) (bool, error)

// DevicePlatform is the Platform of the terminal client. The worker
// registration and the subscription live in the local store; the user's
// answer is remembered so a refusal is never asked again.
type DevicePlatform struct {
	store        store.Store
	scope        string
	endpointBase string
	prompt       Prompt

	mu sync.Mutex
}

// NewDevicePlatform creates a platform for scope. endpointBase is the push
// service URL new subscription endpoints are minted under.
func NewDevicePlatform(s store.Store, scope, endpointBase string, prompt Prompt) *DevicePlatform {
	return &DevicePlatform{
		store:        s,
		scope:        scope,
		endpointBase: strings.TrimRight(endpointBase, "/"),
		prompt:       prompt,
	}
}

func (p *DevicePlatform) permissionKey() string { return "push-permission-" + p.scope }
func (p *DevicePlatform) privateKeyKey() string { return "push-private-key-" + p.scope }

// RegisterWorker implements Platform.
func (p *DevicePlatform) RegisterWorker(ctx context.Context, scriptURL, scope string) error {
	if scope != p.scope {
		return fmt.Errorf("worker scope %q does not match platform scope %q", scope, p.scope)
	}
	reg, err := p.store.GetWorker(ctx, scope)
	if err == nil && reg.ScriptURL == scriptURL {
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return p.store.RegisterWorker(ctx, store.WorkerRegistration{Scope: scope, ScriptURL: scriptURL})
}

// Subscription implements Platform.
func (p *DevicePlatform) Subscription(ctx context.Context) (*webpush.Subscription, error) {
	sub, err := p.store.GetPushSubscription(ctx, p.scope)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

// RequestPermission implements Platform. The prompt runs only while the
// permission is still undecided.
func (p *DevicePlatform) RequestPermission(ctx context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	saved, err := p.store.GetSnapshot(ctx, p.permissionKey())
	switch {
	case err == nil:
		switch string(saved) {
		case PermissionGranted.String():
			return PermissionGranted, nil
		case PermissionDenied.String():
			return PermissionDenied, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return PermissionDefault, fmt.Errorf("reading permission: %w", err)
	}

	if p.prompt == nil {
		return PermissionDefault, nil
	}
	ok, err := p.prompt(ctx)
	if err != nil {
		return PermissionDefault, fmt.Errorf("prompting for permission: %w", err)
	}

	perm := PermissionDenied
	if ok {
		perm = PermissionGranted
	}
	if err := p.store.PutSnapshot(ctx, p.permissionKey(), []byte(perm.String())); err != nil {
		return perm, fmt.Errorf("saving permission: %w", err)
	}
	return perm, nil
}

// Subscribe implements Platform. The device key pair comes from
// webpush.GenerateVAPIDKeys; its private half stays in the local store.
func (p *DevicePlatform) Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error) {
	if applicationServerKey == "" {
		return nil, errors.New("missing application server key")
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("generating device keys: %w", err)
	}
	secret := uuid.New()

	sub := &webpush.Subscription{
		Endpoint: fmt.Sprintf("%s/%s", p.endpointBase, uuid.NewString()),
		Keys: webpush.Keys{
			P256dh: pub,
			Auth:   base64.RawURLEncoding.EncodeToString(secret[:]),
		},
	}

	if err := p.store.PutSnapshot(ctx, p.privateKeyKey(), []byte(priv)); err != nil {
		return nil, fmt.Errorf("saving device key: %w", err)
	}
	if err := p.store.SavePushSubscription(ctx, p.scope, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe implements Platform.
func (p *DevicePlatform) Unsubscribe(ctx context.Context) error {
	if err := p.store.DeletePushSubscription(ctx, p.scope); err != nil {
		return err
	}
	return p.store.DeleteSnapshot(ctx, p.privateKeyKey())
}
