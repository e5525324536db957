package engine

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Relay forwards opaque WebRTC negotiation messages between a student
// connection and a targeted observer connection. Payloads are never
// inspected or transformed. Delivery is at-most-once: a message addressed
// to a connection with no live binding is dropped silently, since WebRTC
// negotiation retries at the application layer.
type Relay struct {
	registry *Registry
	conns    *Conns
}

func NewRelay(registry *Registry, conns *Conns) *Relay {
	return &Relay{registry: registry, conns: conns}
}

// Forward sends the payload byte-for-byte to the target connection, tagged
// with the sender's identity so the receiver can address a reply.
func (r *Relay) Forward(kind, senderConnID, targetConnID string, payload json.RawMessage) {
	switch kind {
	case SignalOffer, SignalAnswer, SignalICECandidate:
	default:
		log.Warn().Str("kind", kind).Str("from", senderConnID).Msg("unknown signal kind, dropping")
		return
	}

	target := r.conns.Get(targetConnID)
	if target == nil {
		// Expected during negotiation races; not surfaced to the sender.
		log.Debug().
			Str("kind", kind).
			Str("target", targetConnID).
			Msg("relay target not live, dropping")
		return
	}

	if err := target.Send(Event{
		Type:    kind,
		From:    senderConnID,
		Kind:    kind,
		Payload: payload,
	}); err != nil {
		log.Debug().Err(err).Str("target", targetConnID).Msg("relay send failed")
	}
}

// RequestOffer asks the session's student connection to start a fresh WebRTC
// negotiation with the given observer. If no student connection is bound yet
// the request is a no-op: the observer receives nothing until the student
// joins, and the UI layer re-issues watch requests.
func (r *Relay) RequestOffer(sessionID, observerConnID string) {
	studentConnID := r.registry.StudentConn(sessionID)
	if studentConnID == "" {
		log.Debug().
			Str("session_id", sessionID).
			Str("observer", observerConnID).
			Msg("no student connection bound, offer request skipped")
		return
	}

	student := r.conns.Get(studentConnID)
	if student == nil {
		return
	}

	if err := student.Send(Event{
		Type:      EventOfferRequest,
		SessionID: sessionID,
		From:      observerConnID,
	}); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("offer request send failed")
	}
}
