package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Registry is the authoritative in-memory map of active proctoring sessions.
// It owns its own mutex, held only for map reads and writes — never across a
// classifier call or a socket write.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // sessionID -> session
	byConn   map[string]string   // studentConnID -> sessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
	}
}

// Join creates the session on first join and rebinds the student connection
// on repeated joins with the same session ID (last writer wins — this models
// reconnection after a network blip; the second joiner is not authenticated
// against the first, a policy carried over deliberately). Idempotent for
// repeated joins from the same connection. Returns a copy of the resulting
// state.
func (r *Registry) Join(sessionID, userID, examID, connID string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		sess = &Session{
			ID:        sessionID,
			ExamID:    examID,
			UserID:    userID,
			Status:    StatusWaiting,
			StartedAt: time.Now(),
		}
		r.sessions[sessionID] = sess
	}

	if sess.StudentConnID != "" && sess.StudentConnID != connID {
		delete(r.byConn, sess.StudentConnID)
		log.Info().
			Str("session_id", sessionID).
			Str("old_conn", sess.StudentConnID).
			Str("new_conn", connID).
			Msg("rebinding student connection")
	}

	sess.StudentConnID = connID
	sess.Status = StatusConnected
	r.byConn[connID] = sessionID

	return *sess
}

// Get returns a copy of the session, if it exists.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// StudentConn returns the currently bound student connection for a session,
// or "" if the session is unknown or still waiting.
func (r *Registry) StudentConn(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[sessionID]; ok {
		return sess.StudentConnID
	}
	return ""
}

// SessionForConn resolves the session a student connection is bound to.
func (r *Registry) SessionForConn(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.byConn[connID]
	if !ok {
		return Session{}, false
	}
	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// MarkEnded transitions the session to ended and removes it from the active
// set. Historical violation data is untouched. Returns the final state and
// whether the session existed. No transition leaves ended.
func (r *Registry) MarkEnded(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}

	delete(r.sessions, sessionID)
	if sess.StudentConnID != "" {
		delete(r.byConn, sess.StudentConnID)
	}
	sess.Status = StatusEnded
	return *sess, true
}

// ListActive returns copies of every active session, for the admin overview.
func (r *Registry) ListActive() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
