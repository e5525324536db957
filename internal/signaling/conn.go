package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"proctor-engine/internal/monitor"
)

var errSendBufferFull = errors.New("send buffer full")

// Conn wraps one WebSocket connection. Outbound messages go through a
// buffered channel serviced by a single writer goroutine, so the engine's
// fan-out never blocks on a slow peer; a full buffer drops the message,
// consistent with at-most-once delivery.
type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	metrics *monitor.Metrics

	writeTimeout time.Duration
	pingInterval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, ws *websocket.Conn, sendBuffer int, writeTimeout, pingInterval time.Duration, metrics *monitor.Metrics) *Conn {
	return &Conn{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		metrics:      metrics,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		closed:       make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string { return c.id }

// Send queues a message for delivery. It never blocks.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.metrics.RecordBroadcastDrop()
		log.Warn().Str("conn", c.id).Msg("send buffer full, dropping message")
		return errSendBufferFull
	}
}

// writePump services the send channel and keepalive pings until the
// connection closes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("write failed")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}
