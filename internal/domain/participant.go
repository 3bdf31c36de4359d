package domain

import "time"

type ParticipantEventKind string

const (
	ParticipantJoined ParticipantEventKind = "joined"
	ParticipantLeft   ParticipantEventKind = "left"
)

// ParticipantEvent records a join or leave observed on the live stream.
type ParticipantEvent struct {
	MeetingID       MeetingID            `json:"meeting_id"`
	Kind            ParticipantEventKind `json:"kind"`
	ParticipantID   string               `json:"participant_id"`
	ParticipantName string               `json:"participant_name"`
	At              time.Time            `json:"at"`
}
