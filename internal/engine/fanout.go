package engine

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Fanout pushes lifecycle and violation events to subscribed observers.
// Delivery is fire-and-forget with no acknowledgment or retry: a
// disconnected watcher misses the event and picks up current state on its
// next explicit query.
type Fanout struct {
	directory *Directory
	conns     *Conns

	mu     sync.Mutex
	admins map[string]struct{} // connIDs subscribed to the global admin room
}

func NewFanout(directory *Directory, conns *Conns) *Fanout {
	return &Fanout{
		directory: directory,
		conns:     conns,
		admins:    make(map[string]struct{}),
	}
}

// Subscribe adds a connection to the global admin room. Idempotent.
func (f *Fanout) Subscribe(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins[connID] = struct{}{}
}

// Unsubscribe removes a connection from the admin room. Idempotent.
func (f *Fanout) Unsubscribe(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.admins, connID)
}

// BroadcastToWatchers delivers an event to every observer currently watching
// the session.
func (f *Fanout) BroadcastToWatchers(sessionID string, event Event) {
	for _, connID := range f.directory.WatchersOf(sessionID) {
		f.deliver(connID, event)
	}
}

// BroadcastToAdmins delivers a session lifecycle event to every connection
// in the global admin room, regardless of which sessions they watch.
func (f *Fanout) BroadcastToAdmins(event Event) {
	f.mu.Lock()
	targets := make([]string, 0, len(f.admins))
	for connID := range f.admins {
		targets = append(targets, connID)
	}
	f.mu.Unlock()

	for _, connID := range targets {
		f.deliver(connID, event)
	}
}

func (f *Fanout) deliver(connID string, event Event) {
	sender := f.conns.Get(connID)
	if sender == nil {
		return
	}
	if err := sender.Send(event); err != nil {
		log.Debug().Err(err).Str("conn", connID).Str("event", event.Type).Msg("event delivery failed")
	}
}
