package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peerdial/signaling/internal/models"
	"github.com/peerdial/signaling/internal/presence"
	"github.com/peerdial/signaling/internal/signaling"
	"github.com/peerdial/signaling/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// client is one live websocket. roomID tracks the last room the connection
// was confirmed into and exists only to feed the presence mirror.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	roomID string
}

func (c *client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// SignalingHandler owns the websocket side of the relay: it upgrades
// connections, pumps frames, and addresses outbound events by connection
// ID. It is the Sender the router emits through.
type SignalingHandler struct {
	router   *signaling.Router
	presence *presence.Tracker
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewSignalingHandler wires a fresh router to this transport. The tracker
// may be nil to run without the Redis presence mirror.
func NewSignalingHandler(logger *slog.Logger, tracker *presence.Tracker) *SignalingHandler {
	h := &SignalingHandler{
		presence: tracker,
		log:      logger,
		clients:  make(map[string]*client),
	}
	h.router = signaling.NewRouter(h, logger)
	return h
}

// Router exposes the signaling core for the operator endpoints.
func (h *SignalingHandler) Router() *signaling.Router {
	return h.router
}

// HandleSignaling upgrades the request and runs the connection until the
// socket closes. Identity (user_id) was attached by middleware before the
// request got here; anonymous connections are allowed.
func (h *SignalingHandler) HandleSignaling(c *gin.Context) {
	userID := c.GetString("user_id")
	displayName := c.Query("displayName")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("ws.upgrade", "err", err)
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()
	metrics.ActiveConnections.Inc()

	h.router.Register(cl.id, userID, displayName)
	h.log.Debug("ws.connect", "conn", cl.id, "user", userID)

	go h.writePump(cl)
	go h.readPump(cl)
}

// Send implements signaling.Sender. Delivery is best-effort: events for
// unknown connections are dropped, and a full send buffer drops the event
// rather than blocking the router. The channel push happens under the read
// lock; readPump closes the channel only after removing the client under
// the write lock, so a send can never hit a closed channel.
func (h *SignalingHandler) Send(connID string, event signaling.Outbound) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("ws.send: marshal", "conn", connID, "err", err)
		return
	}

	h.mu.RLock()
	cl := h.clients[connID]
	if cl != nil {
		select {
		case cl.send <- data:
		default:
			h.log.Warn("ws.send: buffer full, dropping event", "conn", connID)
		}
	}
	h.mu.RUnlock()

	if cl == nil {
		h.log.Debug("ws.send: connection gone", "conn", connID)
		return
	}
	h.observe(cl, event)
}

// observe keeps the presence mirror and metrics in step with what the
// router confirmed to this connection. Mirror writes go to Redis, so they
// run off the router's goroutine.
func (h *SignalingHandler) observe(cl *client, event signaling.Outbound) {
	switch ev := event.(type) {
	case signaling.RoomJoined:
		if old := cl.room(); old != "" && old != ev.RoomID {
			go h.presence.Left(old, cl.id)
		}
		cl.setRoom(ev.RoomID)
		go h.presence.Joined(ev.RoomID, cl.id)
		metrics.Joins.Inc()
	case signaling.RoomLeft:
		cl.setRoom("")
		go h.presence.Left(ev.RoomID, cl.id)
	case signaling.ErrorEvent:
		metrics.Errors.Inc()
	}
}

func (h *SignalingHandler) readPump(cl *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, cl.id)
		h.mu.Unlock()

		cl.conn.Close()
		close(cl.send)

		h.router.Dispatch(cl.id, signaling.Disconnect{})
		if roomID := cl.room(); roomID != "" {
			go h.presence.Left(roomID, cl.id)
		}
		metrics.ActiveConnections.Dec()
		h.log.Debug("ws.disconnect", "conn", cl.id)
	}()

	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("ws.read", "conn", cl.id, "err", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Warn("ws.read: bad frame", "conn", cl.id, "err", err)
			continue
		}

		ev, ok := decodeInbound(env)
		if !ok {
			h.log.Warn("ws.read: unknown message type", "conn", cl.id, "type", env.Type)
			continue
		}
		switch ev.(type) {
		case signaling.Offer, signaling.Answer, signaling.ICECandidate:
			metrics.Relays.WithLabelValues(env.Type).Inc()
		}
		h.router.Dispatch(cl.id, ev)
	}
}

// decodeInbound maps a wire envelope onto the router's closed event set.
// The transport-initiated Disconnect is deliberately not reachable from the
// wire.
func decodeInbound(env models.Envelope) (signaling.Inbound, bool) {
	switch signaling.EventType(env.Type) {
	case signaling.EventJoinRoom:
		return signaling.JoinRoom{RoomID: env.RoomID}, true
	case signaling.EventLeaveRoom:
		return signaling.LeaveRoom{}, true
	case signaling.EventOffer:
		return signaling.Offer{To: env.To, Offer: env.Offer}, true
	case signaling.EventAnswer:
		return signaling.Answer{To: env.To, Answer: env.Answer}, true
	case signaling.EventICECandidate:
		return signaling.ICECandidate{To: env.To, Candidate: env.Candidate}, true
	default:
		return nil, false
	}
}

func (h *SignalingHandler) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Warn("ws.write", "conn", cl.id, "err", err)
				return
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
