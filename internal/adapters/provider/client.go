// Package provider implements the streaming client for the transcription
// provider's live feed. One client serves one meeting; the session manager
// constructs it from the connection params of a started notification.
package provider

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
)

// message is the provider's wire envelope. The type field closes the set
// of variants; anything else is logged and skipped.
type message struct {
	Type            string  `json:"type"`
	Text            string  `json:"text,omitempty"`
	RelativeMs      int64   `json:"ts,omitempty"`
	ParticipantID   string  `json:"participantId,omitempty"`
	ParticipantName string  `json:"participantName,omitempty"`
	Seq             int64   `json:"seq,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	Event           string  `json:"event,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// Client implements core.StreamClient over a websocket feed.
type Client struct {
	params core.ConnectParams

	onFragment    func(core.RawFragment)
	onParticipant func(kind, participantID, participantName string)
	onClosed      func(reason string)

	mu   sync.Mutex
	conn *websocket.Conn
	left bool
}

// New is a core.StreamClientFactory.
func New(params core.ConnectParams) core.StreamClient {
	return &Client{params: params}
}

func (c *Client) OnFragment(fn func(core.RawFragment)) { c.onFragment = fn }

func (c *Client) OnParticipant(fn func(kind, participantID, participantName string)) {
	c.onParticipant = fn
}

func (c *Client) OnClosed(fn func(reason string)) { c.onClosed = fn }

// Join dials the feed and starts the delivery loop. Callbacks fire
// sequentially from that loop, so per-session fragment order is the wire
// order.
func (c *Client) Join(ctx context.Context) error {
	header := http.Header{}
	if c.params.Token != "" {
		header.Set("Authorization", "Bearer "+c.params.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.params.URL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("client already left")
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Leave closes the connection. Safe to call twice; an explicit leave never
// fires the closed callback.
func (c *Client) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left {
		return nil
	}
	c.left = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			left := c.left
			c.left = true
			c.mu.Unlock()
			_ = conn.Close()
			if !left && c.onClosed != nil {
				c.onClosed(err.Error())
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	switch msg.Type {
	case "transcript":
		if c.onFragment != nil {
			c.onFragment(core.RawFragment{
				Text:            msg.Text,
				RelativeMs:      msg.RelativeMs,
				ParticipantID:   msg.ParticipantID,
				ParticipantName: msg.ParticipantName,
				Seq:             msg.Seq,
				Confidence:      msg.Confidence,
			})
		}
	case "participant":
		if c.onParticipant != nil {
			c.onParticipant(msg.Event, msg.ParticipantID, msg.ParticipantName)
		}
	case "closed":
		// The provider announced the end of the feed; the read loop will
		// observe the close next, this is informational only.
		log.Info().Str("module", "provider").Str("reason", msg.Reason).Msg("provider announced close")
	default:
		log.Warn().Str("module", "provider").Str("type", msg.Type).Msg("unknown provider message")
	}
}
