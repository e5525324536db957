package engine

import "sync"

// Conns is the table of live transport connections, keyed by connection ID.
// The signaling gateway registers a connection on upgrade and unregisters it
// on disconnect; everything the engine sends resolves through this table.
type Conns struct {
	mu    sync.Mutex
	conns map[string]Sender
}

func NewConns() *Conns {
	return &Conns{conns: make(map[string]Sender)}
}

func (c *Conns) Register(connID string, s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[connID] = s
}

func (c *Conns) Unregister(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, connID)
}

// Get returns the sender for a connection, or nil if it is not live.
func (c *Conns) Get(connID string) Sender {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[connID]
}

func (c *Conns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}
