package signaling

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"proctor-engine/internal/config"
	"proctor-engine/internal/engine"
	"proctor-engine/internal/monitor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Auth is established before a session is admitted, upstream of this
	// engine, so any origin may open the signaling socket.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the control-plane message read from a signaling connection.
// For offer/answer/ice-candidate the payload is opaque and forwarded
// byte-for-byte.
type Envelope struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"sessionId,omitempty"`
	UserID        string          `json:"userId,omitempty"`
	ExamID        string          `json:"examId,omitempty"`
	Target        string          `json:"targetConnectionId,omitempty"`
	ViolationType string          `json:"violationType,omitempty"`
	Description   string          `json:"description,omitempty"`
	SnapshotKey   string          `json:"snapshotKey,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Gateway upgrades HTTP connections to the persistent signaling transport
// and feeds decoded control messages into the coordinator. Messages from a
// single connection are dispatched in arrival order by its read loop.
type Gateway struct {
	coordinator *engine.Coordinator
	cfg         config.SignalingConfig
	metrics     *monitor.Metrics
}

func NewGateway(coordinator *engine.Coordinator, cfg config.SignalingConfig, metrics *monitor.Metrics) *Gateway {
	return &Gateway{
		coordinator: coordinator,
		cfg:         cfg,
		metrics:     metrics,
	}
}

// HandleWS is the GET /ws endpoint.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New().String()
	conn := newConn(connID, ws, g.cfg.SendBuffer, g.cfg.WriteTimeout, g.cfg.PingInterval, g.metrics)

	g.coordinator.Register(connID, conn)
	go conn.writePump()

	log.Info().Str("conn", connID).Str("remote_addr", r.RemoteAddr).Msg("signaling connection established")

	// The client needs its own connection ID to be addressable by peers.
	_ = conn.Send(engine.Event{Type: engine.EventConnected, From: connID})

	g.readLoop(conn)
}

func (g *Gateway) readLoop(conn *Conn) {
	defer func() {
		// Exactly one cleanup per disconnect, whatever ended the loop.
		g.coordinator.Disconnect(conn.id)
		conn.close()
		log.Info().Str("conn", conn.id).Msg("signaling connection closed")
	}()

	conn.ws.SetReadLimit(g.cfg.ReadLimit)
	_ = conn.ws.SetReadDeadline(time.Now().Add(2 * g.cfg.PingInterval))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(2 * g.cfg.PingInterval))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", conn.id).Msg("read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("conn", conn.id).Msg("malformed envelope, ignoring")
			continue
		}

		g.dispatch(conn.id, env)
	}
}

func (g *Gateway) dispatch(connID string, env Envelope) {
	switch env.Type {
	case "join-session":
		g.coordinator.HandleJoin(connID, env.SessionID, env.UserID, env.ExamID)
	case "admin-join":
		g.coordinator.HandleAdminJoin(connID)
	case "watch-session":
		g.coordinator.HandleWatch(connID, env.SessionID)
	case engine.SignalOffer, engine.SignalAnswer, engine.SignalICECandidate:
		g.coordinator.HandleSignal(env.Type, connID, env.Target, env.Payload)
	case "violation":
		g.coordinator.HandleClientViolation(connID, env.SessionID, env.ViolationType, env.Description, env.SnapshotKey)
	case "end-session":
		g.coordinator.HandleEndSession(connID)
	default:
		log.Warn().Str("conn", connID).Str("type", env.Type).Msg("unknown message type, ignoring")
	}
}
