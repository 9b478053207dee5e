package signaling

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sender is the transport's address-by-connection-id primitive. Send must
// not block and must silently drop events addressed to connections it no
// longer knows: relay delivery is best-effort and the negotiation protocols
// above us already handle missing responses.
type Sender interface {
	Send(connectionID string, event Outbound)
}

// Router is the behavioral core of the relay. It owns the connection
// registry and the room table and is the only component that mutates them.
// A single mutex guards both tables so that a room membership change and
// the matching connection.RoomID update are always atomic as a pair; rooms
// are two-party and short-lived, so there is nothing to gain from sharding.
type Router struct {
	log    *slog.Logger
	sender Sender

	mu    sync.Mutex
	conns *connectionRegistry
	rooms *roomTable
}

// NewRouter creates an independent signaling instance. Multiple routers can
// coexist (one per test, for example); there is no process-global state.
func NewRouter(sender Sender, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		log:    logger,
		sender: sender,
		conns:  newConnectionRegistry(),
		rooms:  newRoomTable(),
	}
}

// Register records a new authenticated connection. The transport assigns
// fresh IDs, so a duplicate indicates a transport bug; it is logged and the
// call becomes a no-op rather than crashing anything.
func (rt *Router) Register(connID, userID, displayName string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.conns.register(connID, userID, displayName); err != nil {
		rt.log.Error("router.register", "conn", connID, "err", err)
		return
	}
	rt.log.Debug("router.register", "conn", connID, "user", userID)
}

// Dispatch routes one inbound event from the named connection. The switch
// is exhaustive over the Inbound variants; adding a kind without handling
// it here is a compile-time review item, not a silent no-op.
func (rt *Router) Dispatch(connID string, ev Inbound) {
	switch ev := ev.(type) {
	case JoinRoom:
		rt.join(connID, ev.RoomID)
	case LeaveRoom:
		rt.leave(connID)
	case Offer:
		rt.relay(connID, EventOffer, ev.To, ev.Offer)
	case Answer:
		rt.relay(connID, EventAnswer, ev.To, ev.Answer)
	case ICECandidate:
		rt.relay(connID, EventICECandidate, ev.To, ev.Candidate)
	case Disconnect:
		rt.disconnect(connID)
	}
}

func (rt *Router) join(connID, roomID string) {
	if roomID == "" {
		rt.sender.Send(connID, errorEvent("Invalid room ID"))
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	conn, ok := rt.conns.lookup(connID)
	if !ok {
		rt.log.Error("router.join: unregistered connection", "conn", connID)
		return
	}

	// Duplicate join into the room the connection already occupies is a
	// silent no-op; reconnecting clients retry joins.
	if conn.RoomID == roomID {
		rt.log.Debug("router.join: already in room", "conn", connID, "room", roomID)
		return
	}

	// A connection occupies at most one room: a second join migrates it.
	if conn.RoomID != "" {
		rt.leaveLocked(conn, false)
	}

	rt.rooms.ensure(roomID)
	if err := rt.rooms.tryAddMember(roomID, connID); err != nil {
		if errors.Is(err, ErrRoomFull) {
			rt.log.Debug("router.join rejected", "conn", connID, "room", roomID, "err", err)
			rt.sender.Send(connID, errorEvent("Room is full"))
			return
		}
		// AlreadyMember in a room the registry says we are not in, or a
		// room ensure just created vanishing: both are invariant breaks.
		rt.log.Error("router.join", "conn", connID, "room", roomID, "err", err)
		return
	}
	if err := rt.conns.setRoom(connID, roomID); err != nil {
		// Unreachable: lookup succeeded under the same lock.
		rt.log.Error("router.join", "conn", connID, "err", err)
	}

	others := rt.rooms.otherMembers(roomID, connID)
	users := make([]UserInfo, 0, len(others))
	for _, otherID := range others {
		other, ok := rt.conns.lookup(otherID)
		if !ok {
			rt.log.Error("router.join: member missing from registry", "conn", otherID, "room", roomID)
			continue
		}
		users = append(users, UserInfo{
			ConnectionID: other.ID,
			UserID:       other.UserID,
			DisplayName:  other.DisplayName,
		})
		rt.sender.Send(otherID, UserJoined{
			Type:         EventUserJoined,
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			DisplayName:  conn.DisplayName,
		})
	}
	rt.sender.Send(connID, RoomJoined{Type: EventRoomJoined, RoomID: roomID, Users: users})
	rt.log.Debug("router.join", "conn", connID, "room", roomID, "peers", len(users))
}

func (rt *Router) leave(connID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	conn, ok := rt.conns.lookup(connID)
	if !ok || conn.RoomID == "" {
		return
	}
	rt.leaveLocked(conn, true)
}

// leaveLocked releases conn's room membership and notifies the remaining
// occupant. The room-left confirmation is only sent for an explicit leave;
// during disconnect cleanup or a join migration there is nobody to confirm
// to. Callers hold rt.mu.
func (rt *Router) leaveLocked(conn *Connection, notifyLeaver bool) {
	roomID := conn.RoomID
	rt.rooms.removeMember(roomID, conn.ID)
	conn.RoomID = ""

	for _, otherID := range rt.rooms.otherMembers(roomID, conn.ID) {
		rt.sender.Send(otherID, UserLeft{
			Type:         EventUserLeft,
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
		})
	}
	if notifyLeaver {
		rt.sender.Send(conn.ID, RoomLeft{Type: EventRoomLeft, RoomID: roomID})
	}
	rt.log.Debug("router.leave", "conn", conn.ID, "room", roomID)
}

// relay forwards a negotiation payload verbatim to the named target. No
// membership check: the target ID was learned from a room-joined or
// user-joined event, and delivery to a connection that vanished in the
// meantime is silently dropped by the Sender.
func (rt *Router) relay(connID string, kind EventType, target string, payload []byte) {
	if target == "" || len(payload) == 0 {
		rt.sender.Send(connID, errorEvent(fmt.Sprintf("Invalid %s data", kind)))
		return
	}

	switch kind {
	case EventOffer:
		rt.sender.Send(target, OfferEvent{Type: kind, From: connID, Offer: payload})
	case EventAnswer:
		rt.sender.Send(target, AnswerEvent{Type: kind, From: connID, Answer: payload})
	case EventICECandidate:
		rt.sender.Send(target, ICECandidateEvent{Type: kind, From: connID, Candidate: payload})
	}
}

// disconnect is transport-initiated cleanup. It always succeeds and is
// idempotent: a second call for the same ID finds nothing to do.
func (rt *Router) disconnect(connID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	conn, ok := rt.conns.lookup(connID)
	if !ok {
		return
	}
	if conn.RoomID != "" {
		rt.leaveLocked(conn, false)
	}
	rt.conns.remove(connID)
	rt.log.Debug("router.disconnect", "conn", connID)
}
