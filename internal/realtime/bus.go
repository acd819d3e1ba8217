// Package realtime maintains the single shared subscription to the realtime
// server and routes decoded events to per-channel handlers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/model"
)

// ErrClosed is returned by Run once the bus has been closed.
var ErrClosed = errors.New("realtime bus closed")

// Conn is one live connection to the realtime server. WriteFrame must be
// safe to call concurrently with ReadFrame.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Dialer opens a new Conn.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Handler receives decoded events of one channel. Handlers for a channel are
// called serially in delivery order.
type Handler func(Event)

// TransportError wraps a connection failure. The bus reconnects on its own;
// these are only reported through the logger.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("realtime %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Bus multiplexes every channel subscription over one connection.
type Bus struct {
	dialer     Dialer
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu       gosync.Mutex
	handlers map[model.Channel]Handler
	conn     Conn
	closed   bool
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBackoff bounds the delay between reconnect attempts.
func WithBackoff(min, max time.Duration) BusOption {
	return func(b *Bus) {
		b.minBackoff = min
		b.maxBackoff = max
	}
}

// WithLogger sets the logger used for transport errors and dropped events.
func WithLogger(l *zap.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates a bus that connects through dialer once Run is called.
func NewBus(dialer Dialer, opts ...BusOption) *Bus {
	b := &Bus{
		dialer:     dialer,
		logger:     zap.NewNop(),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		handlers:   make(map[model.Channel]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxBackoff < b.minBackoff {
		b.maxBackoff = b.minBackoff
	}
	return b
}

// Subscribe routes events of channel to h, replacing any previous handler.
// The subscription survives reconnects.
func (b *Bus) Subscribe(channel model.Channel, h Handler) {
	b.mu.Lock()
	b.handlers[channel] = h
	conn := b.conn
	b.mu.Unlock()

	if conn != nil {
		b.send(conn, Frame{Type: FrameSubscribe, Channel: channel})
	}
}

// Unsubscribe stops delivery on channel. Unknown channels are ignored.
func (b *Bus) Unsubscribe(channel model.Channel) {
	b.mu.Lock()
	_, ok := b.handlers[channel]
	delete(b.handlers, channel)
	conn := b.conn
	b.mu.Unlock()

	if ok && conn != nil {
		b.send(conn, Frame{Type: FrameUnsubscribe, Channel: channel})
	}
}

// Channels returns the channels that currently have a handler.
func (b *Bus) Channels() []model.Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Channel, 0, len(b.handlers))
	for c := range b.handlers {
		out = append(out, c)
	}
	return out
}

// Connected reports whether a connection is currently established.
func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Close ends Run and drops every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	conn := b.conn
	b.conn = nil
	b.handlers = make(map[model.Channel]Handler)
	b.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Run keeps the bus connected until ctx is cancelled or Close is called.
// After every successful dial all current subscriptions are sent again.
func (b *Bus) Run(ctx context.Context) error {
	backoff := b.minBackoff
	for {
		if b.isClosed() {
			return ErrClosed
		}

		conn, err := b.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("realtime dial failed",
				zap.Error(&TransportError{Op: "dial", Err: err}),
				zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, b.maxBackoff)
			continue
		}
		backoff = b.minBackoff

		if !b.attach(conn) {
			conn.Close()
			return ErrClosed
		}
		b.logger.Info("realtime connected")

		err = b.readLoop(ctx, conn)
		b.detach(conn)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if b.isClosed() {
			return ErrClosed
		}
		b.logger.Warn("realtime connection lost", zap.Error(&TransportError{Op: "read", Err: err}))
	}
}

func (b *Bus) attach(conn Conn) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.conn = conn
	channels := make([]model.Channel, 0, len(b.handlers))
	for c := range b.handlers {
		channels = append(channels, c)
	}
	b.mu.Unlock()

	for _, c := range channels {
		b.send(conn, Frame{Type: FrameSubscribe, Channel: c})
	}
	return true
}

func (b *Bus) detach(conn Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	b.mu.Unlock()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) send(conn Conn, f Frame) {
	if err := conn.WriteFrame(f); err != nil {
		b.logger.Warn("realtime write failed",
			zap.String("channel", f.Channel.String()),
			zap.Error(&TransportError{Op: string(f.Type), Err: err}))
	}
}

// readLoop delivers frames from conn until it fails. A single loop per
// connection keeps delivery ordered within each channel.
func (b *Bus) readLoop(ctx context.Context, conn Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			return err
		}
		b.dispatch(f)
	}
}

func (b *Bus) dispatch(f Frame) {
	if f.Type != FrameEvent {
		return
	}

	b.mu.Lock()
	h, ok := b.handlers[f.Channel]
	b.mu.Unlock()
	if !ok {
		return
	}

	ev, err := Parse(f.Channel, f.Data)
	if err != nil {
		b.logger.Debug("dropping realtime event", zap.String("channel", f.Channel.String()), zap.Error(err))
		return
	}
	h(ev)
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max || next <= 0 {
		return max
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
