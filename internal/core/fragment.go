package core

// RawFragment is what the provider client decodes off the wire. The
// timestamp is relative to the provider's own stream clock, not epoch
// anchored, so storage timing is captured at receipt instead.
type RawFragment struct {
	Text            string
	RelativeMs      int64
	ParticipantID   string
	ParticipantName string
	Seq             int64 // 0 when the provider supplies none
	Confidence      float64
}

// Fragment is the normalized unit forwarded to the relay for broadcast
// and persistence. SpeakerID here is still the external participant id;
// the store resolves it to a speaker row on the write path.
type Fragment struct {
	SpeakerID    string  `json:"speakerId"`
	SpeakerLabel string  `json:"speakerLabel"`
	Text         string  `json:"text"`
	StartMs      int64   `json:"startMs"`
	EndMs        int64   `json:"endMs"`
	Seq          int64   `json:"sequenceNumber"`
	Confidence   float64 `json:"confidence"`
}
