package core

import (
	"context"

	"github.com/livescribe/livescribe/internal/domain"
)

type SessionStatus string

const (
	StatusStarted SessionStatus = "started"
	StatusStopped SessionStatus = "stopped"
)

// StatusReport is the session manager's view of a lifecycle transition.
type StatusReport struct {
	SessionID  string
	Status     SessionStatus
	TopicHint  string
	OperatorID string
}

// Ingress is the relay surface the session manager reports into. Calls are
// fire-and-forget from the manager's point of view: errors are logged by
// the caller and never retried.
type Ingress interface {
	ReportStatus(ctx context.Context, r StatusReport) error
	ReportFragment(ctx context.Context, sessionID string, f Fragment) error
	ReportParticipant(ctx context.Context, sessionID string, kind domain.ParticipantEventKind, participantID, participantName string) error
}
