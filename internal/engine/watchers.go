package engine

import "sync"

// Directory tracks which observer connections watch which sessions. An
// observer connection does not self-report its sessions on disconnect, so
// removal scans every entry. All operations are idempotent.
type Directory struct {
	mu       sync.Mutex
	watchers map[string]map[string]struct{} // sessionID -> set of observer connIDs
}

func NewDirectory() *Directory {
	return &Directory{
		watchers: make(map[string]map[string]struct{}),
	}
}

// AddWatcher subscribes an observer connection to a session. Adding an
// existing watcher is a no-op.
func (d *Directory) AddWatcher(sessionID, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.watchers[sessionID]
	if !ok {
		set = make(map[string]struct{})
		d.watchers[sessionID] = set
	}
	set[connID] = struct{}{}
}

// RemoveWatcher removes the observer from every session it watches.
// Removing an absent watcher is a no-op.
func (d *Directory) RemoveWatcher(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sessionID, set := range d.watchers {
		delete(set, connID)
		if len(set) == 0 {
			delete(d.watchers, sessionID)
		}
	}
}

// RemoveSession drops the whole watcher set for a session on teardown.
func (d *Directory) RemoveSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.watchers, sessionID)
}

// WatchersOf returns the observer connections currently watching a session.
func (d *Directory) WatchersOf(sessionID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.watchers[sessionID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// WatcherCount reports the total number of (session, observer) subscriptions.
func (d *Directory) WatcherCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, set := range d.watchers {
		n += len(set)
	}
	return n
}
