package engine

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"proctor-engine/internal/monitor"
)

// ViolationReport is the engine-level record of one rule breach, produced
// either by the analysis pipeline or by a client self-report. One report
// aggregates every violation from a single analysis under one timestamp.
type ViolationReport struct {
	ID           string
	SessionID    string
	UserID       string
	ExamID       string
	Types        []string
	Descriptions []string
	FaceCount    int
	SnapshotKey  string
	CreatedAt    time.Time
}

// ViolationSink receives reports for durable persistence. Recording must not
// block; a sink failure is the sink's problem — observers have already been
// notified by the time a report reaches it.
type ViolationSink interface {
	Record(ViolationReport)
}

// Coordinator binds transport connections to sessions and observer sets and
// dispatches every control-plane message against the shared in-memory state.
// Each handler is a short, non-blocking unit of work; the one blocking
// operation in the system (image analysis) happens outside this type and
// feeds back in through RecordViolation.
type Coordinator struct {
	registry  *Registry
	directory *Directory
	conns     *Conns
	relay     *Relay
	fanout    *Fanout
	sink      ViolationSink
	metrics   *monitor.Metrics
	newID     func() string
}

func NewCoordinator(sink ViolationSink, metrics *monitor.Metrics, newID func() string) *Coordinator {
	registry := NewRegistry()
	directory := NewDirectory()
	conns := NewConns()

	return &Coordinator{
		registry:  registry,
		directory: directory,
		conns:     conns,
		relay:     NewRelay(registry, conns),
		fanout:    NewFanout(directory, conns),
		sink:      sink,
		metrics:   metrics,
		newID:     newID,
	}
}

// Registry exposes the session registry for read-side HTTP handlers.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Register binds a live transport connection into the connection table.
func (c *Coordinator) Register(connID string, s Sender) {
	c.conns.Register(connID, s)
}

// HandleJoin creates or rebinds the student side of a session and announces
// it to the admin room.
func (c *Coordinator) HandleJoin(connID, sessionID, userID, examID string) {
	if sessionID == "" {
		log.Warn().Str("conn", connID).Msg("join without session id, ignoring")
		return
	}

	sess := c.registry.Join(sessionID, userID, examID, connID)

	log.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Str("exam_id", examID).
		Str("conn", connID).
		Msg("student joined session")

	c.metrics.SetActiveSessions(c.registry.Len())
	c.fanout.BroadcastToAdmins(Event{
		Type:      EventSessionJoined,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ExamID:    sess.ExamID,
		At:        time.Now(),
	})
}

// HandleAdminJoin subscribes a connection to the global admin room and
// delivers the current active-session list.
func (c *Coordinator) HandleAdminJoin(connID string) {
	c.fanout.Subscribe(connID)

	if sender := c.conns.Get(connID); sender != nil {
		if err := sender.Send(Event{
			Type:     EventActiveSessions,
			Sessions: c.registry.ListActive(),
		}); err != nil {
			log.Debug().Err(err).Str("conn", connID).Msg("active-sessions send failed")
		}
	}
}

// HandleWatch subscribes an observer to a session and asks the student side
// to start a negotiation with it. Watching a session that was never joined
// is a no-op: the engine does not synthesize sessions, and no offer request
// is queued.
func (c *Coordinator) HandleWatch(connID, sessionID string) {
	if _, ok := c.registry.Get(sessionID); !ok {
		log.Debug().Str("session_id", sessionID).Str("conn", connID).Msg("watch for unknown session, ignoring")
		return
	}

	c.directory.AddWatcher(sessionID, connID)
	c.metrics.SetWatchers(c.directory.WatcherCount())
	c.relay.RequestOffer(sessionID, connID)
}

// HandleSignal relays an opaque offer/answer/ice-candidate payload.
func (c *Coordinator) HandleSignal(kind, connID, targetConnID string, payload json.RawMessage) {
	c.metrics.RecordSignal(kind)
	c.relay.Forward(kind, connID, targetConnID, payload)
}

// HandleClientViolation records a rule breach the student-side client
// self-reported (tab switch, fullscreen exit and the like). Image analysis
// is bypassed.
func (c *Coordinator) HandleClientViolation(connID, sessionID, vtype, description, snapshotKey string) {
	if vtype == "" {
		return
	}
	c.RecordViolation(sessionID, []string{vtype}, []string{description}, 0, snapshotKey)
}

// RecordViolation broadcasts a violation to the session's watchers and hands
// it to the persistence sink. Unknown sessions are a no-op. Broadcast comes
// first: proctors see the event live even when durable logging later fails.
// Returns false if the session is unknown.
func (c *Coordinator) RecordViolation(sessionID string, types, descriptions []string, faceCount int, snapshotKey string) bool {
	if len(types) == 0 {
		return true
	}

	sess, ok := c.registry.Get(sessionID)
	if !ok {
		log.Debug().Str("session_id", sessionID).Msg("violation for unknown session, ignoring")
		return false
	}

	report := ViolationReport{
		ID:           c.newID(),
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		ExamID:       sess.ExamID,
		Types:        types,
		Descriptions: descriptions,
		FaceCount:    faceCount,
		SnapshotKey:  snapshotKey,
		CreatedAt:    time.Now(),
	}

	for _, t := range types {
		c.metrics.RecordViolation(t)
	}

	c.fanout.BroadcastToWatchers(sessionID, Event{
		Type:        EventViolation,
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		ExamID:      sess.ExamID,
		Violations:  descriptions,
		SnapshotKey: snapshotKey,
		At:          report.CreatedAt,
	})

	if c.sink != nil {
		c.sink.Record(report)
	}
	return true
}

// HandleEndSession ends the session bound to the calling student connection.
func (c *Coordinator) HandleEndSession(connID string) {
	sess, ok := c.registry.SessionForConn(connID)
	if !ok {
		log.Debug().Str("conn", connID).Msg("end-session from connection with no bound session, ignoring")
		return
	}
	c.endSession(sess.ID, EventSessionEnded)
}

// Disconnect runs cleanup for a dropped transport connection. It is
// idempotent and safe for connections that never joined or watched anything.
// Shared state is cleared synchronously, before returning, so no further
// signaling can resolve the stale connection ID.
func (c *Coordinator) Disconnect(connID string) {
	c.conns.Unregister(connID)
	c.fanout.Unsubscribe(connID)

	if sess, ok := c.registry.SessionForConn(connID); ok {
		log.Info().Str("session_id", sess.ID).Str("conn", connID).Msg("student connection dropped")
		c.endSession(sess.ID, EventStudentDisconnected)
	}

	c.directory.RemoveWatcher(connID)
	c.metrics.SetWatchers(c.directory.WatcherCount())
}

func (c *Coordinator) endSession(sessionID, eventType string) {
	sess, ok := c.registry.MarkEnded(sessionID)
	if !ok {
		return
	}

	event := Event{
		Type:      eventType,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ExamID:    sess.ExamID,
		At:        time.Now(),
	}

	c.fanout.BroadcastToWatchers(sessionID, event)
	c.fanout.BroadcastToAdmins(event)

	// Watcher entries must not outlive the registry entry.
	c.directory.RemoveSession(sessionID)

	c.metrics.SetActiveSessions(c.registry.Len())
	c.metrics.SetWatchers(c.directory.WatcherCount())

	log.Info().Str("session_id", sessionID).Str("event", eventType).Msg("session ended")
}
