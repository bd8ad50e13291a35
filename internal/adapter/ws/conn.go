// Package ws adapts hertz websocket connections to the relay's message socket.
package ws

import (
	"fmt"
	"sync"
	"time"

	"npcgateway/internal/app/relay"

	"github.com/hertz-contrib/websocket"
)

const (
	DefaultWriteWait = 10 * time.Second
	DefaultReadLimit = 1 << 20
)

type Options struct {
	WriteWait time.Duration
	ReadLimit int64
}

// Conn serializes writes with a mutex and a per-write deadline; reads are left
// to a single reader goroutine.
type Conn struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func Wrap(c *websocket.Conn, opts Options) *Conn {
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	c.SetReadLimit(opts.ReadLimit)
	return &Conn{conn: c, writeWait: opts.WriteWait}
}

func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, fmt.Errorf("%w: %v", relay.ErrClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *Conn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close releases the socket, sending a close frame only when no write is in
// flight. It never waits on a stuck writer; closing the socket unblocks it.
// Safe to call from any goroutine, more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.mu.TryLock() {
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			c.mu.Unlock()
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
