package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
	"github.com/livescribe/livescribe/internal/metrics"
	"github.com/livescribe/livescribe/internal/taskq"
)

// Enricher looks up operator metadata in an external directory. Calls are
// best-effort background work; failures never reach the ingestion path.
type Enricher interface {
	EnrichMeeting(ctx context.Context, meetingID domain.MeetingID, operatorID string) error
}

type segmentEvent struct {
	SessionID string        `json:"sessionId"`
	Segment   core.Fragment `json:"segment"`
}

type participantEvent struct {
	SessionID string                  `json:"sessionId"`
	Event     domain.ParticipantEvent `json:"event"`
}

type statusEvent struct {
	SessionID string               `json:"sessionId"`
	Status    domain.MeetingStatus `json:"status"`
}

// Relay receives status and fragment reports from the session manager,
// resolves meetings, broadcasts over the push channel and schedules the
// durable writes. Broadcast always happens before, and independent of,
// the storage write: a viewer may render a fragment fractionally before
// it is durable.
type Relay struct {
	mu         sync.RWMutex
	byExternal map[string]domain.MeetingID

	meetings    core.MeetingStore
	transcripts core.TranscriptStore
	resolver    *OwnershipResolver
	hub         core.Broadcaster
	tasks       *taskq.Pool
	enricher    Enricher // optional
}

func NewRelay(meetings core.MeetingStore, transcripts core.TranscriptStore, resolver *OwnershipResolver, hub core.Broadcaster, tasks *taskq.Pool) *Relay {
	return &Relay{
		byExternal:  make(map[string]domain.MeetingID),
		meetings:    meetings,
		transcripts: transcripts,
		resolver:    resolver,
		hub:         hub,
		tasks:       tasks,
	}
}

// SetEnricher wires the optional external directory client.
func (r *Relay) SetEnricher(e Enricher) { r.enricher = e }

func (r *Relay) ReportStatus(ctx context.Context, report core.StatusReport) error {
	switch report.Status {
	case core.StatusStarted:
		return r.onStarted(ctx, report)
	case core.StatusStopped:
		return r.onStopped(ctx, report)
	default:
		return fmt.Errorf("unknown status %q", report.Status)
	}
}

func (r *Relay) onStarted(ctx context.Context, report core.StatusReport) error {
	m, realOwner, err := r.resolver.EnsureMeeting(ctx, report.SessionID, report.TopicHint, report.OperatorID)
	if err != nil {
		return err
	}
	if err := r.meetings.MarkOngoing(ctx, m.ID); err != nil {
		return err
	}

	r.mu.Lock()
	r.byExternal[report.SessionID] = m.ID
	r.mu.Unlock()

	r.hub.Broadcast(m.ID, core.EventMeetingStatus, statusEvent{
		SessionID: report.SessionID,
		Status:    domain.MeetingOngoing,
	})

	meetingID := m.ID
	operatorID := report.OperatorID
	switch {
	case realOwner:
		r.scheduleEnrichment(meetingID, operatorID)
	case operatorID != "":
		// The meeting sits with the placeholder; try the at-most-once
		// reassignment off the ingestion path.
		if !r.tasks.Enqueue(func(taskCtx context.Context) error {
			moved, rerr := r.resolver.MaybeReassign(taskCtx, meetingID, operatorID)
			if rerr != nil {
				return fmt.Errorf("reassign meeting %s: %w", meetingID, rerr)
			}
			if moved {
				r.scheduleEnrichment(meetingID, operatorID)
			}
			return nil
		}) {
			metrics.QueueFull.Inc()
		}
	}
	return nil
}

func (r *Relay) scheduleEnrichment(meetingID domain.MeetingID, operatorID string) {
	if r.enricher == nil || operatorID == "" {
		return
	}
	if !r.tasks.Enqueue(func(taskCtx context.Context) error {
		if err := r.enricher.EnrichMeeting(taskCtx, meetingID, operatorID); err != nil {
			return fmt.Errorf("enrich meeting %s: %w", meetingID, err)
		}
		return nil
	}) {
		metrics.QueueFull.Inc()
	}
}

func (r *Relay) onStopped(ctx context.Context, report core.StatusReport) error {
	id, ok := r.resolveMeeting(ctx, report.SessionID)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("session", report.SessionID).Msg("stopped for unknown meeting ignored")
		return nil
	}
	if err := r.meetings.MarkCompleted(ctx, id, time.Now()); err != nil {
		return err
	}
	r.hub.Broadcast(id, core.EventMeetingStatus, statusEvent{
		SessionID: report.SessionID,
		Status:    domain.MeetingCompleted,
	})

	r.mu.Lock()
	delete(r.byExternal, report.SessionID)
	r.mu.Unlock()
	return nil
}

// ReportFragment broadcasts the fragment to live viewers first, then
// schedules the idempotent storage write. A fragment for a session with no
// resolvable meeting is dropped and counted, never surfaced as an error.
func (r *Relay) ReportFragment(ctx context.Context, sessionID string, f core.Fragment) error {
	id, ok := r.resolveMeeting(ctx, sessionID)
	if !ok {
		metrics.FragmentsDropped.Inc()
		log.Warn().Str("module", "app.relay").Str("session", sessionID).Int64("seq", f.Seq).Msg("fragment dropped, no meeting")
		return nil
	}

	r.hub.Broadcast(id, core.EventTranscriptSegment, segmentEvent{SessionID: sessionID, Segment: f})

	if !r.tasks.Enqueue(func(taskCtx context.Context) error {
		return r.persistFragment(taskCtx, id, f)
	}) {
		metrics.QueueFull.Inc()
		log.Warn().Str("module", "app.relay").Str("session", sessionID).Int64("seq", f.Seq).Msg("persist queue full, fragment not stored")
	}
	return nil
}

func (r *Relay) persistFragment(ctx context.Context, meetingID domain.MeetingID, f core.Fragment) error {
	speaker, err := r.transcripts.FindOrCreateSpeaker(ctx, meetingID, f.SpeakerID, f.SpeakerLabel)
	if err != nil {
		return fmt.Errorf("persist meeting=%s seq=%d: %w", meetingID, f.Seq, err)
	}
	seg := domain.TranscriptSegment{
		MeetingID:  meetingID,
		SpeakerID:  speaker.ID,
		Seq:        f.Seq,
		Text:       f.Text,
		StartMs:    f.StartMs,
		EndMs:      f.EndMs,
		Confidence: f.Confidence,
	}
	if err := r.transcripts.UpsertSegment(ctx, seg); err != nil {
		return fmt.Errorf("persist meeting=%s seq=%d: %w", meetingID, f.Seq, err)
	}
	return nil
}

func (r *Relay) ReportParticipant(ctx context.Context, sessionID string, kind domain.ParticipantEventKind, participantID, participantName string) error {
	id, ok := r.resolveMeeting(ctx, sessionID)
	if !ok {
		log.Warn().Str("module", "app.relay").Str("session", sessionID).Msg("participant event dropped, no meeting")
		return nil
	}
	ev := domain.ParticipantEvent{
		MeetingID:       id,
		Kind:            kind,
		ParticipantID:   participantID,
		ParticipantName: participantName,
		At:              time.Now(),
	}
	r.hub.Broadcast(id, core.EventParticipant, participantEvent{SessionID: sessionID, Event: ev})

	if !r.tasks.Enqueue(func(taskCtx context.Context) error {
		if err := r.transcripts.AppendParticipantEvent(taskCtx, ev); err != nil {
			return fmt.Errorf("persist participant event meeting=%s: %w", id, err)
		}
		return nil
	}) {
		metrics.QueueFull.Inc()
	}
	return nil
}

// resolveMeeting checks the process-local cache first and falls back to
// durable storage, which is authoritative after a relay restart.
func (r *Relay) resolveMeeting(ctx context.Context, sessionID string) (domain.MeetingID, bool) {
	r.mu.RLock()
	id, ok := r.byExternal[sessionID]
	r.mu.RUnlock()
	if ok {
		return id, true
	}

	m, err := r.meetings.MeetingByExternalID(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		return "", false
	}
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("session", sessionID).Msg("meeting lookup failed")
		return "", false
	}

	r.mu.Lock()
	r.byExternal[sessionID] = m.ID
	r.mu.Unlock()
	return m.ID, true
}
