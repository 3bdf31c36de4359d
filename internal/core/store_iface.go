package core

import (
	"context"
	"errors"
	"time"

	"github.com/livescribe/livescribe/internal/domain"
)

// ErrNotFound is returned by lookups for absent rows.
var ErrNotFound = errors.New("not found")

// MeetingStore is the durable meeting registry. It is authoritative; the
// relay's external-id cache is an accelerator only.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, m *domain.Meeting) error
	MeetingByExternalID(ctx context.Context, externalID string) (*domain.Meeting, error)
	MeetingByID(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error)
	// MarkOngoing promotes a pending meeting to ongoing. Any other status
	// is left alone, so re-processing a started report never demotes a
	// completed meeting.
	MarkOngoing(ctx context.Context, id domain.MeetingID) error
	// MarkCompleted sets status, end time and duration computed from the
	// stored start time. Completing a completed meeting is a no-op.
	MarkCompleted(ctx context.Context, id domain.MeetingID, endedAt time.Time) error
	// ReassignOwner moves ownership from -> to and reports whether a row
	// changed. The guard makes reassignment at-most-once: it only fires
	// while the current owner is still `from`.
	ReassignOwner(ctx context.Context, id domain.MeetingID, from, to domain.UserID) (bool, error)
	UpdateTitle(ctx context.Context, id domain.MeetingID, title string) error
}

// TranscriptStore is the idempotent segment store plus the lazily-created
// speaker registry and participant-event log.
type TranscriptStore interface {
	// UpsertSegment inserts or, on a (meeting, seq) conflict, overwrites
	// text and end offset only, preserving the original start offset.
	UpsertSegment(ctx context.Context, seg domain.TranscriptSegment) error
	FindOrCreateSpeaker(ctx context.Context, meetingID domain.MeetingID, participantID, label string) (domain.Speaker, error)
	AppendParticipantEvent(ctx context.Context, ev domain.ParticipantEvent) error
	SegmentsByMeeting(ctx context.Context, meetingID domain.MeetingID) ([]domain.TranscriptSegment, error)
	ParticipantEventsByMeeting(ctx context.Context, meetingID domain.MeetingID) ([]domain.ParticipantEvent, error)
	SpeakersByMeeting(ctx context.Context, meetingID domain.MeetingID) ([]domain.Speaker, error)
}

// UserDirectory resolves operator identities to application users.
type UserDirectory interface {
	UserByOperatorID(ctx context.Context, operatorID string) (*domain.User, error)
	UserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	// PlaceholderUser returns the shared fallback owner, creating it on
	// first use.
	PlaceholderUser(ctx context.Context) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
}
