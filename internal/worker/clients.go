package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/workpresence/internal/browser"
)

// ErrNoWindow is returned by Focus for an unknown window id.
var ErrNoWindow = errors.New("no such window")

// DesktopClients tracks the windows opened for deep links and opens new
// ones in the OS browser.
type DesktopClients struct {
	open func(url string) error

	mu      sync.Mutex
	windows []Window
	claimed bool
}

// NewDesktopClients creates a registry. A nil opener uses browser.Open.
func NewDesktopClients(open func(url string) error) *DesktopClients {
	if open == nil {
		open = browser.Open
	}
	return &DesktopClients{open: open}
}

// Claim implements Clients.
func (c *DesktopClients) Claim(context.Context) error {
	c.mu.Lock()
	c.claimed = true
	c.mu.Unlock()
	return nil
}

// Claimed reports whether Claim was called.
func (c *DesktopClients) Claimed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimed
}

// Windows implements Clients.
func (c *DesktopClients) Windows(context.Context) ([]Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Window, len(c.windows))
	copy(out, c.windows)
	return out, nil
}

// Focus implements Clients. Focusing re-opens the URL, which raises the
// existing browser tab on most platforms.
func (c *DesktopClients) Focus(_ context.Context, id string) error {
	c.mu.Lock()
	idx := -1
	for i := range c.windows {
		c.windows[i].Focused = c.windows[i].ID == id
		if c.windows[i].ID == id {
			idx = i
		}
	}
	var url string
	if idx >= 0 {
		url = c.windows[idx].URL
	}
	c.mu.Unlock()

	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNoWindow, id)
	}
	return c.open(url)
}

// OpenWindow implements Clients.
func (c *DesktopClients) OpenWindow(_ context.Context, url string) (Window, error) {
	if err := c.open(url); err != nil {
		return Window{}, err
	}
	w := Window{ID: uuid.NewString(), URL: url, Focused: true}

	c.mu.Lock()
	for i := range c.windows {
		c.windows[i].Focused = false
	}
	c.windows = append(c.windows, w)
	c.mu.Unlock()
	return w, nil
}

// Forget drops a window, for example after the user closed it.
func (c *DesktopClients) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.windows {
		if c.windows[i].ID == id {
			c.windows = append(c.windows[:i], c.windows[i+1:]...)
			return
		}
	}
}

// ChannelNotifier hands notifications to the dashboard over a channel.
// Shown notifications stay listed until closed.
type ChannelNotifier struct {
	out chan Notification

	mu    sync.Mutex
	shown map[string]Notification
}

// NewChannelNotifier creates a notifier with a buffered channel of size.
func NewChannelNotifier(size int) *ChannelNotifier {
	return &ChannelNotifier{
		out:   make(chan Notification, size),
		shown: make(map[string]Notification),
	}
}

// C returns the channel notifications are delivered on.
func (n *ChannelNotifier) C() <-chan Notification { return n.out }

// Show implements Notifier.
func (n *ChannelNotifier) Show(ctx context.Context, note Notification) error {
	n.mu.Lock()
	n.shown[note.Tag] = note
	n.mu.Unlock()

	select {
	case n.out <- note:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Notifier.
func (n *ChannelNotifier) Close(_ context.Context, tag string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.shown, tag)
	return nil
}

// Shown returns the notifications not yet closed.
func (n *ChannelNotifier) Shown() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, 0, len(n.shown))
	for _, note := range n.shown {
		out = append(out, note)
	}
	return out
}
