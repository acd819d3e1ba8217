package realtime

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/model"
)

type fakeConn struct {
	in     chan Frame
	closed chan struct{}
	once   gosync.Once

	mu     gosync.Mutex
	writes []Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan Frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return Frame{}, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) subscribed() []model.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Channel
	for _, f := range c.writes {
		if f.Type == FrameSubscribe {
			out = append(out, f.Channel)
		}
	}
	return out
}

type fakeDialer struct {
	mu    gosync.Mutex
	conns []*fakeConn
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials >= len(d.conns) {
		return nil, errors.New("no more connections")
	}
	c := d.conns[d.dials]
	d.dials++
	return c, nil
}

func eventFrame(t *testing.T, channel model.Channel, payload interface{}) Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Frame{Type: FrameEvent, Channel: channel, Data: data}
}

func runBus(t *testing.T, b *Bus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestBusDeliversInOrder(t *testing.T) {
	conn := newFakeConn()
	b := NewBus(&fakeDialer{conns: []*fakeConn{conn}}, WithBackoff(time.Millisecond, time.Millisecond))

	ch := model.NotificationChannel(model.NotificationTodo, "u1")
	got := make(chan string, 3)
	b.Subscribe(ch, func(ev Event) {
		got <- ev.(NotificationEvent).Message
	})
	runBus(t, b)

	for _, msg := range []string{"one", "two", "three"} {
		conn.in <- eventFrame(t, ch, map[string]string{"message": msg})
	}

	for _, want := range []string{"one", "two", "three"} {
		select {
		case msg := <-got:
			assert.Equal(t, want, msg)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestBusResubscribesAfterReconnect(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	b := NewBus(&fakeDialer{conns: []*fakeConn{first, second}}, WithBackoff(time.Millisecond, time.Millisecond))

	b.Subscribe(model.ChannelPunchIn, func(Event) {})
	b.Subscribe(model.ChannelLogout, func(Event) {})
	runBus(t, b)

	require.Eventually(t, func() bool { return len(first.subscribed()) == 2 }, time.Second, 5*time.Millisecond)

	first.Close()

	require.Eventually(t, func() bool { return len(second.subscribed()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []model.Channel{model.ChannelPunchIn, model.ChannelLogout}, second.subscribed())
	assert.True(t, b.Connected())
}

func TestBusSubscribeWhileConnected(t *testing.T) {
	conn := newFakeConn()
	b := NewBus(&fakeDialer{conns: []*fakeConn{conn}})
	runBus(t, b)

	require.Eventually(t, b.Connected, time.Second, 5*time.Millisecond)
	b.Subscribe(model.CommentChannel("T-1"), func(Event) {})
	b.Unsubscribe(model.CommentChannel("T-1"))
	b.Unsubscribe(model.CommentChannel("never"))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.writes, 2)
	assert.Equal(t, FrameSubscribe, conn.writes[0].Type)
	assert.Equal(t, FrameUnsubscribe, conn.writes[1].Type)
}

func TestBusDropsUnrecognizedPayload(t *testing.T) {
	conn := newFakeConn()
	b := NewBus(&fakeDialer{conns: []*fakeConn{conn}})

	got := make(chan Event, 2)
	b.Subscribe(model.ChannelPunchOut, func(ev Event) { got <- ev })
	runBus(t, b)

	conn.in <- Frame{Type: FrameEvent, Channel: model.ChannelPunchOut, Data: json.RawMessage(`"garbage"`)}
	conn.in <- eventFrame(t, model.ChannelPunchOut, map[string]string{"employeeId": "e1"})

	select {
	case ev := <-got:
		assert.Equal(t, PresenceEvent{Kind: PresencePunchOut, EmployeeID: "e1"}, ev)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	assert.Empty(t, got)
}

func TestBusIgnoresUnsubscribedChannel(t *testing.T) {
	conn := newFakeConn()
	b := NewBus(&fakeDialer{conns: []*fakeConn{conn}})

	got := make(chan Event, 2)
	b.Subscribe(model.ChannelPunchIn, func(ev Event) { got <- ev })
	runBus(t, b)

	conn.in <- eventFrame(t, model.ChannelPunchOut, map[string]string{"employeeId": "e1"})
	conn.in <- eventFrame(t, model.ChannelPunchIn, map[string]string{"employeeId": "e2"})

	select {
	case ev := <-got:
		assert.Equal(t, "e2", ev.(PresenceEvent).EmployeeID)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestBusRunStopsOnClose(t *testing.T) {
	conn := newFakeConn()
	b := NewBus(&fakeDialer{conns: []*fakeConn{conn}})
	b.Subscribe(model.ChannelLogout, func(Event) {})

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()

	require.Eventually(t, b.Connected, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, b.Channels())
}

func TestBusRunStopsOnCancel(t *testing.T) {
	b := NewBus(&fakeDialer{}, WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, 10*time.Second))
}
