package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
	"github.com/livescribe/livescribe/internal/store"
)

type recordedEvent struct {
	MeetingID domain.MeetingID
	Type      core.EventType
	Payload   any
}

// recordingHub captures broadcasts in call order.
type recordingHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (h *recordingHub) Broadcast(meetingID domain.MeetingID, event core.EventType, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{MeetingID: meetingID, Type: event, Payload: payload})
}

func (h *recordingHub) Events() []recordedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]recordedEvent, len(h.events))
	copy(out, h.events)
	return out
}

func (h *recordingHub) ByType(t core.EventType) []recordedEvent {
	var out []recordedEvent
	for _, ev := range h.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeStream is a scriptable core.StreamClient. Fragments in emitOnJoin
// are delivered from inside Join, like a provider that starts talking the
// moment the connection is up.
type fakeStream struct {
	mu         sync.Mutex
	joinErr    error
	joins      int
	leaves     int
	emitOnJoin []core.RawFragment

	onFragment    func(core.RawFragment)
	onParticipant func(kind, participantID, participantName string)
	onClosed      func(reason string)
}

func (f *fakeStream) Join(ctx context.Context) error {
	f.mu.Lock()
	if f.joinErr != nil {
		f.mu.Unlock()
		return f.joinErr
	}
	f.joins++
	emit := f.emitOnJoin
	fn := f.onFragment
	f.mu.Unlock()
	for _, raw := range emit {
		fn(raw)
	}
	return nil
}

func (f *fakeStream) Leave() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeStream) OnFragment(fn func(core.RawFragment)) { f.onFragment = fn }
func (f *fakeStream) OnParticipant(fn func(kind, participantID, participantName string)) {
	f.onParticipant = fn
}
func (f *fakeStream) OnClosed(fn func(reason string)) { f.onClosed = fn }

func (f *fakeStream) Joins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joins
}

func (f *fakeStream) Leaves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves
}

// streamFactory hands out one fakeStream per call and counts calls.
type streamFactory struct {
	mu         sync.Mutex
	joinErr    error
	emitOnJoin []core.RawFragment
	made       []*fakeStream
}

func (sf *streamFactory) New(params core.ConnectParams) core.StreamClient {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	c := &fakeStream{joinErr: sf.joinErr, emitOnJoin: sf.emitOnJoin}
	sf.made = append(sf.made, c)
	return c
}

func (sf *streamFactory) Count() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return len(sf.made)
}

func (sf *streamFactory) Last() *fakeStream {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if len(sf.made) == 0 {
		return nil
	}
	return sf.made[len(sf.made)-1]
}

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
