package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
)

// Session is the live, in-memory state of one active streaming connection.
// It is never persisted; a restart loses it and a fresh "started"
// notification is required to resume ingestion.
type Session struct {
	ExternalID string
	StreamID   string
	OperatorID string
	Client     core.StreamClient
	StartedAt  time.Time
}

// SessionRegistry owns the session table for one SessionManager. It is
// injected rather than ambient so its lifetime is tied to the manager's.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// PutIfAbsent registers the session unless one already exists for its
// external id. It reports whether the session was stored, which is how
// duplicate "started" notifications collapse to a no-op.
func (r *SessionRegistry) PutIfAbsent(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ExternalID]; ok {
		return false
	}
	r.sessions[s.ExternalID] = s
	log.Info().Str("module", "app.registry").Str("session", s.ExternalID).Msg("session registered")
	return true
}

func (r *SessionRegistry) Get(externalID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[externalID]
	return s, ok
}

// Remove deletes and returns the session, reporting whether it existed.
func (r *SessionRegistry) Remove(externalID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[externalID]
	if ok {
		delete(r.sessions, externalID)
		log.Info().Str("module", "app.registry").Str("session", externalID).Msg("session removed")
	}
	return s, ok
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
