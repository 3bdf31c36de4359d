package domain

import "github.com/google/uuid"

type SpeakerID string

// Speaker is created lazily on the first fragment referencing an unseen
// participant id. The label is never updated afterwards; if the provider
// renames a participant mid-meeting the original label sticks.
type Speaker struct {
	ID            SpeakerID `json:"id"`
	MeetingID     MeetingID `json:"meeting_id"`
	ParticipantID string    `json:"participant_id"`
	Label         string    `json:"label"`
}

func NewSpeaker(meetingID MeetingID, participantID, label string) Speaker {
	return Speaker{
		ID:            SpeakerID(uuid.NewString()),
		MeetingID:     meetingID,
		ParticipantID: participantID,
		Label:         label,
	}
}
