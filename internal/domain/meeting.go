// Package domain contains entities without logic, just meta-data
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MeetingID string

type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingOngoing   MeetingStatus = "ongoing"
	MeetingCompleted MeetingStatus = "completed"
)

// Meeting is the durable record for one externally-driven session.
// ExternalID is the provider's session id and is unique per meeting.
type Meeting struct {
	ID         MeetingID     `json:"id"`
	ExternalID string        `json:"external_id"`
	Title      string        `json:"title"`
	Status     MeetingStatus `json:"status"`
	OwnerID    UserID        `json:"owner_id"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

// NewMeeting avoids ad-hoc struct literals in adapters and app code.
// Meetings are born pending; processing the started report promotes them
// to ongoing, so a pending row marks start handling that never finished.
func NewMeeting(externalID, title string, owner UserID, startedAt time.Time) *Meeting {
	return &Meeting{
		ID:         MeetingID(uuid.NewString()),
		ExternalID: externalID,
		Title:      title,
		Status:     MeetingPending,
		OwnerID:    owner,
		StartedAt:  startedAt,
	}
}
