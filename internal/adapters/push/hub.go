package push

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
	"github.com/livescribe/livescribe/internal/metrics"
)

type envelope struct {
	Type core.EventType `json:"type"`
	Data any            `json:"data"`
}

// HubStats is a read-only view of the live connection state.
type HubStats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// ViewerCounts splits a meeting's viewers for count reporting.
type ViewerCounts struct {
	Owners int `json:"owners"`
	Guests int `json:"guests"`
}

// Hub maps meeting ids to their open viewer connections. It owns the
// membership sets but never touches transport resources beyond closing a
// connection it has evicted.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.MeetingID]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[domain.MeetingID]map[*Conn]struct{})}
}

func (h *Hub) Register(id domain.MeetingID, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	if !ok {
		room = make(map[*Conn]struct{})
		h.rooms[id] = room
	}
	room[c] = struct{}{}
	metrics.LiveConnections.Inc()
	log.Info().Str("module", "push").Str("meeting", string(id)).Str("role", string(c.role)).Msg("viewer added")
}

// Unregister removes the connection and prunes an emptied room. Safe to
// call for a connection that was already evicted.
func (h *Hub) Unregister(id domain.MeetingID, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, id)
	}
	metrics.LiveConnections.Dec()
	log.Info().Str("module", "push").Str("meeting", string(id)).Msg("viewer removed")
}

// Broadcast serializes the event once and sends it to every connection in
// the meeting's set. A connection that fails the send is treated as closed
// and removed; the rest are unaffected.
func (h *Hub) Broadcast(id domain.MeetingID, event core.EventType, payload any) {
	data, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "push").Str("type", string(event)).Msg("broadcast marshal")
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[id]))
	for c := range h.rooms[id] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Conn
	for _, c := range conns {
		if err := c.TrySend(data); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.Unregister(id, c)
		c.Close()
	}

	metrics.BroadcastEvents.WithLabelValues(string(event)).Inc()
	log.Debug().Str("module", "push").Str("meeting", string(id)).Str("type", string(event)).Int("sent_to", len(conns)-len(failed)).Int("dropped", len(failed)).Msg("broadcast result")
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := HubStats{Rooms: len(h.rooms)}
	for _, room := range h.rooms {
		out.Connections += len(room)
	}
	return out
}

func (h *Hub) Viewers(id domain.MeetingID) ViewerCounts {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out ViewerCounts
	for c := range h.rooms[id] {
		if c.role == RoleOwner {
			out.Owners++
		} else {
			out.Guests++
		}
	}
	return out
}
