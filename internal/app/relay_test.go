package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/livescribe/livescribe/internal/app"
	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
	"github.com/livescribe/livescribe/internal/taskq"
)

func newRelay(t *testing.T, running bool) (*app.Relay, *recordingHub, *pipelineStores) {
	t.Helper()
	s := openTestStore(t)
	hub := &recordingHub{}
	tasks := taskq.New(taskq.WithWorkers(1))
	if running {
		ctx, cancel := context.WithCancel(context.Background())
		go tasks.Run(ctx)
		t.Cleanup(cancel)
	}
	resolver := app.NewOwnershipResolver(s, s)
	relay := app.NewRelay(s, s, resolver, hub, tasks)
	return relay, hub, &pipelineStores{s: s}
}

type pipelineStores struct {
	s interface {
		core.MeetingStore
		core.TranscriptStore
		core.UserDirectory
	}
}

func TestUnknownSessionFragmentIsDropped(t *testing.T) {
	relay, hub, _ := newRelay(t, true)

	err := relay.ReportFragment(context.Background(), "ghost", core.Fragment{Seq: 1, Text: "lost"})
	if err != nil {
		t.Fatalf("drop must not surface an error, got %v", err)
	}
	if got := len(hub.Events()); got != 0 {
		t.Fatalf("broadcasts = %d, want 0 for dropped fragment", got)
	}
}

func TestCacheMissFallsBackToStore(t *testing.T) {
	relay, hub, stores := newRelay(t, true)
	ctx := context.Background()

	// Meeting exists durably but the relay has no cached mapping, as after
	// a restart.
	placeholder, err := stores.s.PlaceholderUser(ctx)
	if err != nil {
		t.Fatalf("placeholder: %v", err)
	}
	m := domain.NewMeeting("ext-9", "recovered", placeholder.ID, time.Now())
	if err := stores.s.CreateMeeting(ctx, m); err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	if err := relay.ReportFragment(ctx, "ext-9", core.Fragment{Seq: 7, Text: "back", SpeakerID: "p1", SpeakerLabel: "P"}); err != nil {
		t.Fatalf("report: %v", err)
	}
	events := hub.ByType(core.EventTranscriptSegment)
	if len(events) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(events))
	}
	if events[0].MeetingID != m.ID {
		t.Fatalf("broadcast meeting = %s, want %s", events[0].MeetingID, m.ID)
	}
	waitFor(t, "segment persisted", func() bool {
		segs, err := stores.s.SegmentsByMeeting(ctx, m.ID)
		return err == nil && len(segs) == 1
	})
}

// TestBroadcastPrecedesPersistence holds the worker pool stopped: every
// fragment still reaches viewers even though nothing gets written.
func TestBroadcastPrecedesPersistence(t *testing.T) {
	relay, hub, stores := newRelay(t, false)
	ctx := context.Background()

	if err := relay.ReportStatus(ctx, core.StatusReport{SessionID: "abc", Status: core.StatusStarted}); err != nil {
		t.Fatalf("started: %v", err)
	}
	m, _ := stores.s.MeetingByExternalID(ctx, "abc")

	for seq := int64(1); seq <= 3; seq++ {
		if err := relay.ReportFragment(ctx, "abc", core.Fragment{Seq: seq, Text: fmt.Sprintf("s%d", seq)}); err != nil {
			t.Fatalf("report %d: %v", seq, err)
		}
	}

	events := hub.ByType(core.EventTranscriptSegment)
	if len(events) != 3 {
		t.Fatalf("broadcasts = %d, want 3", len(events))
	}
	// Viewers observe broadcast order matching the report order.
	for i, ev := range events {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		var got struct {
			Segment core.Fragment `json:"segment"`
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got.Segment.Seq != int64(i+1) {
			t.Fatalf("broadcast %d carries seq %d, want %d", i, got.Segment.Seq, i+1)
		}
	}
	segs, err := stores.s.SegmentsByMeeting(ctx, m.ID)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("segments persisted = %d, want 0 while workers are stopped", len(segs))
	}
}

func TestStatusLifecycleBroadcasts(t *testing.T) {
	relay, hub, stores := newRelay(t, true)
	ctx := context.Background()

	if err := relay.ReportStatus(ctx, core.StatusReport{SessionID: "abc", Status: core.StatusStarted, TopicHint: "planning"}); err != nil {
		t.Fatalf("started: %v", err)
	}
	m, err := stores.s.MeetingByExternalID(ctx, "abc")
	if err != nil {
		t.Fatalf("meeting: %v", err)
	}
	if m.Title != "planning" {
		t.Fatalf("title = %q, want topic hint", m.Title)
	}

	// At-least-once delivery: a duplicate started resolves to the same
	// meeting record.
	if err := relay.ReportStatus(ctx, core.StatusReport{SessionID: "abc", Status: core.StatusStarted}); err != nil {
		t.Fatalf("duplicate started: %v", err)
	}

	if err := relay.ReportStatus(ctx, core.StatusReport{SessionID: "abc", Status: core.StatusStopped}); err != nil {
		t.Fatalf("stopped: %v", err)
	}
	m, _ = stores.s.MeetingByExternalID(ctx, "abc")
	if m.Status != domain.MeetingCompleted {
		t.Fatalf("status = %s, want completed", m.Status)
	}

	statuses := hub.ByType(core.EventMeetingStatus)
	if len(statuses) != 3 {
		t.Fatalf("status broadcasts = %d, want 3", len(statuses))
	}
}
