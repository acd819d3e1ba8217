// Package worker is the background notification handler. It shares no state
// with the dashboard: everything it learns arrives as a Message, and
// everything it does goes through its Notifier and Clients.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/browser"
)

// Defaults applied to push payloads that omit a field.
const (
	DefaultTitle = "New Notification"
	DefaultBody  = "You have a new notification."
	DefaultIcon  = "/icons/icon-192.png"
	DefaultURL   = "/"

	ViewAction = "view"
)

// Action is a button on a notification.
type Action struct {
	Action string
	Title  string
}

// Notification is what the worker asks the platform to display.
type Notification struct {
	Tag                string
	Title              string
	Body               string
	Icon               string
	URL                string
	RequireInteraction bool
	Actions            []Action
}

// Notifier displays and dismisses notifications.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, tag string) error
}

// Window is one open application window.
type Window struct {
	ID      string
	URL     string
	Focused bool
}

// Clients controls the open application windows.
type Clients interface {
	Claim(ctx context.Context) error
	Windows(ctx context.Context) ([]Window, error)
	Focus(ctx context.Context, id string) error
	OpenWindow(ctx context.Context, url string) (Window, error)
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
}

// Worker handles lifecycle messages one at a time.
type Worker struct {
	notifier Notifier
	clients  Clients
	origin   string
	logger   *zap.Logger

	// active is set on the Run goroutine and read from others.
	active atomic.Bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithOrigin sets the base URL deep links are resolved against.
func WithOrigin(origin string) Option {
	return func(w *Worker) { w.origin = origin }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a worker.
func New(n Notifier, c Clients, opts ...Option) *Worker {
	w := &Worker{notifier: n, clients: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("worker")
	return w
}

// Run handles messages from inbox until it is closed or ctx is done.
// Handler errors are logged and do not stop the loop.
func (w *Worker) Run(ctx context.Context, inbox <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbox:
			if !ok {
				return nil
			}
			if err := w.Handle(ctx, msg); err != nil {
				w.logger.Warn("worker message failed", zap.String("type", string(msg.Type)), zap.Error(err))
			}
		}
	}
}

// Handle processes one message.
func (w *Worker) Handle(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	switch msg.Type {
	case MessageInstall:
		// Activate right away instead of waiting for old pages to close.
		w.logger.Debug("installed")
		return nil
	case MessageActivate:
		if err := w.clients.Claim(ctx); err != nil {
			return fmt.Errorf("claiming clients: %w", err)
		}
		w.active.Store(true)
		return nil
	case MessagePush:
		return w.onPush(ctx, msg.Payload)
	case MessageNotificationClick:
		var click ClickPayload
		if err := json.Unmarshal(msg.Payload, &click); err != nil {
			return fmt.Errorf("decoding click: %w", err)
		}
		return w.onClick(ctx, click)
	case MessageFetch:
		return nil
	}
	return nil
}

// Active reports whether the worker has claimed its clients.
func (w *Worker) Active() bool { return w.active.Load() }

// BuildNotification turns any push body into a displayable notification.
// Non-JSON bodies and missing fields fall back to defaults.
func BuildNotification(data []byte) Notification {
	var p pushPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			p = pushPayload{}
			if text := strings.TrimSpace(string(data)); text != "" {
				p.Body = text
			}
		}
	}

	n := Notification{
		Tag:                p.Tag,
		Title:              orDefault(p.Title, DefaultTitle),
		Body:               orDefault(p.Body, DefaultBody),
		Icon:               orDefault(p.Icon, DefaultIcon),
		URL:                orDefault(p.URL, DefaultURL),
		RequireInteraction: true,
		Actions:            []Action{{Action: ViewAction, Title: "View"}},
	}
	if n.Tag == "" {
		n.Tag = uuid.NewString()
	}
	return n
}

func (w *Worker) onPush(ctx context.Context, data []byte) error {
	n := BuildNotification(data)
	if err := w.notifier.Show(ctx, n); err != nil {
		return fmt.Errorf("showing notification: %w", err)
	}
	return nil
}

func (w *Worker) onClick(ctx context.Context, click ClickPayload) error {
	if click.Tag != "" {
		if err := w.notifier.Close(ctx, click.Tag); err != nil {
			w.logger.Debug("closing notification", zap.String("tag", click.Tag), zap.Error(err))
		}
	}

	target, err := browser.Resolve(w.origin, orDefault(click.URL, DefaultURL))
	if err != nil {
		return err
	}

	windows, err := w.clients.Windows(ctx)
	if err != nil {
		return fmt.Errorf("listing windows: %w", err)
	}
	for _, win := range windows {
		if win.URL == target {
			return w.clients.Focus(ctx, win.ID)
		}
	}

	if _, err := w.clients.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
