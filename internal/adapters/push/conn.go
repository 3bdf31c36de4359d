// Package push is the push-channel server: it keeps the per-meeting viewer
// connection sets and fans typed events out to them.
package push

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// transport is an indirection over *websocket.Conn to ease testing.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Role classifies a viewer for count reporting.
type Role string

const (
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
)

// Conn is one viewer connection. Sends are non-blocking: there is no
// backpressure control, a slow viewer fills its buffer and gets dropped,
// which is the connection's natural resource-reclamation path.
type Conn struct {
	conn transport
	send chan []byte
	role Role

	mu     sync.RWMutex
	closed bool
}

func NewConn(t transport, role Role, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 64
	}
	return &Conn{
		conn: t,
		send: make(chan []byte, buffer),
		role: role,
	}
}

func (c *Conn) Role() Role { return c.role }

func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "push").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "push").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump discards inbound data; the channel is one-way. Its job is to
// notice the close or network failure and run the cleanup.
func (c *Conn) readPump(ctx context.Context, onExit func()) {
	defer func() {
		onExit()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
