package core

import "context"

// ConnectParams carries whatever the lifecycle notification supplied for
// joining the provider's live feed.
type ConnectParams struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// StreamClient is the connection to the provider's live transcription feed
// for one meeting. Callbacks must be registered before Join; they are
// invoked sequentially from the client's delivery goroutine.
type StreamClient interface {
	// Join connects using the params the client was built with.
	Join(ctx context.Context) error
	// Leave tears the connection down. Safe to call twice.
	Leave() error
	// OnFragment sets the decoded-text callback.
	OnFragment(func(RawFragment))
	// OnParticipant sets the join/leave callback.
	OnParticipant(func(kind, participantID, participantName string))
	// OnClosed sets a callback for client-detected disconnects. It fires
	// at most once and never for an explicit Leave.
	OnClosed(func(reason string))
}

// StreamClientFactory builds a client per session so the session manager
// never depends on a concrete transport.
type StreamClientFactory func(params ConnectParams) StreamClient
