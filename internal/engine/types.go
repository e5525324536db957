package engine

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a proctoring session.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusConnected SessionStatus = "connected"
	StatusEnded     SessionStatus = "ended"
)

// Session is one proctored exam attempt by one student. The session ID is
// supplied by the client at join time, not generated here.
type Session struct {
	ID            string        `json:"sessionId"`
	ExamID        string        `json:"examId"`
	UserID        string        `json:"userId"`
	StudentConnID string        `json:"studentConnectionId,omitempty"`
	Status        SessionStatus `json:"status"`
	StartedAt     time.Time     `json:"startedAt"`
}

// Sender delivers a single message to one connected peer. Implemented by the
// signaling transport; the engine never blocks on a send.
type Sender interface {
	Send(v any) error
}

// Event is a fan-out payload pushed to watchers or the admin room.
type Event struct {
	Type      string     `json:"type"`
	SessionID string     `json:"sessionId,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	ExamID    string     `json:"examId,omitempty"`
	// From identifies the peer connection an offer-request or relayed
	// signal originated from, so the receiver can address a reply.
	From     string          `json:"from,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Sessions []*Session      `json:"sessions,omitempty"`
	// Violation details, present on type "violation".
	Violations  []string  `json:"violations,omitempty"`
	SnapshotKey string    `json:"snapshotKey,omitempty"`
	At          time.Time `json:"at,omitempty"`
}

// Event type tags.
const (
	EventConnected           = "connected"
	EventSessionJoined       = "session-joined"
	EventSessionEnded        = "session-ended"
	EventStudentDisconnected = "student-disconnected"
	EventOfferRequest        = "offer-request"
	EventActiveSessions      = "active-sessions"
	EventViolation           = "violation"
)

// Signal kinds accepted by the relay.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
)
