package push

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
)

// fakeTransport implements transport without a network.
type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	readCh  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{readCh: make(chan struct{})}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	<-f.readCh
	return 0, nil, context.Canceled
}

func (f *fakeTransport) WriteMessage(mt int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeTransport) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.readCh)
	}
	return nil
}

const meeting = domain.MeetingID("m-1")

func TestBroadcastDeliversToAll(t *testing.T) {
	hub := NewHub()
	conns := make([]*Conn, 3)
	for i := range conns {
		conns[i] = NewConn(newFakeTransport(), RoleGuest, 8)
		hub.Register(meeting, conns[i])
	}

	hub.Broadcast(meeting, core.EventMeetingStatus, map[string]string{"status": "ongoing"})

	for i, c := range conns {
		if got := len(c.send); got != 1 {
			t.Fatalf("conn %d buffered %d messages, want 1", i, got)
		}
	}

	// Closing one connection reduces subsequent deliveries without
	// touching the rest.
	conns[0].Close()
	hub.Broadcast(meeting, core.EventMeetingStatus, map[string]string{"status": "ongoing"})

	if got := hub.Stats().Connections; got != 2 {
		t.Fatalf("connections = %d, want 2 after eviction", got)
	}
	for i, c := range conns[1:] {
		if got := len(c.send); got != 2 {
			t.Fatalf("surviving conn %d buffered %d messages, want 2", i, got)
		}
	}
}

func TestBroadcastEnvelope(t *testing.T) {
	hub := NewHub()
	c := NewConn(newFakeTransport(), RoleGuest, 8)
	hub.Register(meeting, c)

	hub.Broadcast(meeting, core.EventTranscriptSegment, map[string]string{"text": "hi"})

	raw := <-c.send
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != string(core.EventTranscriptSegment) {
		t.Fatalf("type = %q, want transcript.segment", env.Type)
	}
}

func TestSlowViewerIsEvicted(t *testing.T) {
	hub := NewHub()
	c := NewConn(newFakeTransport(), RoleGuest, 1)
	hub.Register(meeting, c)

	// First fills the buffer; second overflows and evicts.
	hub.Broadcast(meeting, core.EventMeetingStatus, "a")
	hub.Broadcast(meeting, core.EventMeetingStatus, "b")

	if got := hub.Stats().Connections; got != 0 {
		t.Fatalf("connections = %d, want 0 after backpressure eviction", got)
	}
}

func TestViewerCounts(t *testing.T) {
	hub := NewHub()
	owner := NewConn(newFakeTransport(), RoleOwner, 8)
	guest1 := NewConn(newFakeTransport(), RoleGuest, 8)
	guest2 := NewConn(newFakeTransport(), RoleGuest, 8)
	hub.Register(meeting, owner)
	hub.Register(meeting, guest1)
	hub.Register(meeting, guest2)

	counts := hub.Viewers(meeting)
	if counts.Owners != 1 || counts.Guests != 2 {
		t.Fatalf("counts = %+v, want 1 owner / 2 guests", counts)
	}

	hub.Unregister(meeting, guest1)
	counts = hub.Viewers(meeting)
	if counts.Guests != 1 {
		t.Fatalf("guests = %d, want 1", counts.Guests)
	}
}

func TestEmptyRoomIsPruned(t *testing.T) {
	hub := NewHub()
	c := NewConn(newFakeTransport(), RoleGuest, 8)
	hub.Register(meeting, c)
	hub.Unregister(meeting, c)

	stats := hub.Stats()
	if stats.Rooms != 0 || stats.Connections != 0 {
		t.Fatalf("stats = %+v, want empty hub", stats)
	}
	// Double unregister is harmless.
	hub.Unregister(meeting, c)
}

func TestWritePumpFlushesToTransport(t *testing.T) {
	ft := newFakeTransport()
	c := NewConn(ft, RoleGuest, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.writePump(ctx)

	if err := c.TrySend([]byte("payload")); err != nil {
		t.Fatalf("trysend: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		ft.mu.Lock()
		n := len(ft.written)
		ft.mu.Unlock()
		if n == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("write never reached transport")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
