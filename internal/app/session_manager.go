package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
	"github.com/livescribe/livescribe/internal/metrics"
)

const (
	EventSessionStarted = "session.started"
	EventSessionStopped = "session.stopped"
)

// Notification is a provider lifecycle event, validated at the HTTP
// boundary before it reaches the manager. Delivery is at-least-once, so
// every handler below is idempotent.
type Notification struct {
	Event            string
	SessionID        string
	StreamID         string
	ConnectionParams core.ConnectParams
	OperatorID       string
	TopicHint        string
}

// SessionManager owns one streaming client per active meeting. It is the
// edge of the pipeline: lifecycle notifications drive client construction
// and teardown, and fragment callbacks are forwarded to the relay without
// blocking the client's delivery goroutine.
type SessionManager struct {
	registry *SessionRegistry
	relay    core.Ingress
	clients  core.StreamClientFactory
}

func NewSessionManager(registry *SessionRegistry, relay core.Ingress, clients core.StreamClientFactory) *SessionManager {
	return &SessionManager{
		registry: registry,
		relay:    relay,
		clients:  clients,
	}
}

func (m *SessionManager) HandleNotification(ctx context.Context, n Notification) error {
	switch n.Event {
	case EventSessionStarted:
		m.handleStarted(ctx, n)
	case EventSessionStopped:
		m.handleStopped(ctx, n)
	default:
		return fmt.Errorf("unknown lifecycle event %q", n.Event)
	}
	return nil
}

func (m *SessionManager) handleStarted(ctx context.Context, n Notification) {
	if _, ok := m.registry.Get(n.SessionID); ok {
		log.Debug().Str("module", "app.manager").Str("session", n.SessionID).Msg("duplicate started notification ignored")
		return
	}

	client := m.clients(n.ConnectionParams)
	client.OnFragment(func(raw core.RawFragment) {
		m.onFragment(n.SessionID, raw)
	})
	client.OnParticipant(func(kind, participantID, participantName string) {
		m.onParticipant(n.SessionID, kind, participantID, participantName)
	})
	client.OnClosed(func(reason string) {
		m.onClientClosed(n.SessionID, reason)
	})

	sess := &Session{
		ExternalID: n.SessionID,
		StreamID:   n.StreamID,
		OperatorID: n.OperatorID,
		Client:     client,
		StartedAt:  time.Now(),
	}
	if !m.registry.PutIfAbsent(sess) {
		return
	}

	// The meeting record must exist before the client's read loop starts:
	// providers can deliver the first fragment at connect time, and a
	// fragment with no resolvable meeting is dropped.
	if err := m.relay.ReportStatus(ctx, core.StatusReport{
		SessionID:  n.SessionID,
		Status:     core.StatusStarted,
		TopicHint:  n.TopicHint,
		OperatorID: n.OperatorID,
	}); err != nil {
		m.registry.Remove(n.SessionID)
		log.Error().Err(err).Str("module", "app.manager").Str("session", n.SessionID).Msg("status report failed, session rolled back")
		return
	}

	if err := client.Join(ctx); err != nil {
		// Only the session entry rolls back. The meeting record stays;
		// creation is idempotent and a redelivered started retries the join.
		m.registry.Remove(n.SessionID)
		log.Error().Err(err).Str("module", "app.manager").Str("session", n.SessionID).Msg("join failed, session rolled back")
		return
	}
}

func (m *SessionManager) handleStopped(ctx context.Context, n Notification) {
	sess, ok := m.registry.Remove(n.SessionID)
	if !ok {
		log.Debug().Str("module", "app.manager").Str("session", n.SessionID).Msg("stopped for unknown session ignored")
		return
	}
	if err := sess.Client.Leave(); err != nil {
		log.Warn().Err(err).Str("module", "app.manager").Str("session", n.SessionID).Msg("leave failed")
	}
	if err := m.relay.ReportStatus(ctx, core.StatusReport{
		SessionID:  n.SessionID,
		Status:     core.StatusStopped,
		OperatorID: n.OperatorID,
	}); err != nil {
		log.Warn().Err(err).Str("module", "app.manager").Str("session", n.SessionID).Msg("status report failed")
	}
}

// onFragment runs on the client's delivery goroutine and must not block.
// Forwarding is best-effort; the relay takes care of broadcast-first
// ordering and schedules the durable write in the background.
func (m *SessionManager) onFragment(sessionID string, raw core.RawFragment) {
	metrics.FragmentsReceived.Inc()

	now := time.Now().UnixMilli()
	seq := raw.Seq
	if seq == 0 {
		// Wall-clock fallback when the provider sends no sequence.
		// Sub-millisecond bursts can collide here; the upsert makes the
		// collision lose data rather than duplicate it.
		seq = now
	}
	speakerID := raw.ParticipantID
	if speakerID == "" {
		speakerID = "unknown"
	}
	label := raw.ParticipantName
	if label == "" {
		label = speakerID
	}

	frag := core.Fragment{
		SpeakerID:    speakerID,
		SpeakerLabel: label,
		Text:         raw.Text,
		StartMs:      now,
		EndMs:        now,
		Seq:          seq,
		Confidence:   raw.Confidence,
	}
	if err := m.relay.ReportFragment(context.Background(), sessionID, frag); err != nil {
		log.Warn().Err(err).Str("module", "app.manager").Str("session", sessionID).Int64("seq", seq).Msg("fragment report failed")
	}
}

func (m *SessionManager) onParticipant(sessionID, kind, participantID, participantName string) {
	k := domain.ParticipantJoined
	if kind == "left" {
		k = domain.ParticipantLeft
	}
	if err := m.relay.ReportParticipant(context.Background(), sessionID, k, participantID, participantName); err != nil {
		log.Warn().Err(err).Str("module", "app.manager").Str("session", sessionID).Msg("participant report failed")
	}
}

// onClientClosed handles a client-detected disconnect. State is cleared to
// avoid a leaked session; there is no automatic reconnect, a fresh started
// notification is required.
func (m *SessionManager) onClientClosed(sessionID, reason string) {
	if _, ok := m.registry.Remove(sessionID); ok {
		log.Warn().Str("module", "app.manager").Str("session", sessionID).Str("reason", reason).Msg("provider disconnect, session cleared")
	}
}
