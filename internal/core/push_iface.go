package core

import "github.com/livescribe/livescribe/internal/domain"

// EventType tags a push-channel envelope.
type EventType string

const (
	EventTranscriptSegment EventType = "transcript.segment"
	EventParticipant       EventType = "participant.event"
	EventMeetingStatus     EventType = "meeting.status"
)

// Broadcaster fans a typed event out to every viewer of a meeting.
// The payload is serialized once per call; delivery is best-effort and a
// connection that fails a send is treated as closed.
type Broadcaster interface {
	Broadcast(meetingID domain.MeetingID, event EventType, payload any)
}
