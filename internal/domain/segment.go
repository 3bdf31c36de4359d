package domain

// TranscriptSegment is one stored transcript row, uniquely keyed by
// (MeetingID, Seq). Timing fields are wall-clock milliseconds.
// ParticipantID is the external participant id taken from the speaker
// row on reads; it matches the speakerId carried by live segment events,
// so backfilled and live segments correlate by speaker.
type TranscriptSegment struct {
	MeetingID     MeetingID `json:"meeting_id"`
	SpeakerID     SpeakerID `json:"speaker_id"`
	ParticipantID string    `json:"participant_id"`
	Seq           int64     `json:"seq"`
	Text          string    `json:"text"`
	StartMs       int64     `json:"start_ms"`
	EndMs         int64     `json:"end_ms"`
	Confidence    float64   `json:"confidence"`
}
