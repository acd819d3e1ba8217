package realtime

import (
	"context"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// TokenSource supplies the bearer token sent on the websocket handshake.
type TokenSource interface {
	Token() (string, error)
}

// WebSocketDialer dials the realtime server over a websocket.
type WebSocketDialer struct {
	URL    string
	Tokens TokenSource
	Dialer *websocket.Dialer
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if d.Tokens != nil {
		token, err := d.Tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("getting realtime token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", d.URL, err)
	}
	return &wsConn{conn: c}, nil
}

// wsConn serializes writes; gorilla allows one concurrent reader and one
// concurrent writer.
type wsConn struct {
	conn    *websocket.Conn
	writeMu gosync.Mutex
}

func (c *wsConn) ReadFrame() (Frame, error) {
	var f Frame
	err := c.conn.ReadJSON(&f)
	return f, err
}

func (c *wsConn) WriteFrame(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
