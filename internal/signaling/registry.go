package signaling

// defaultDisplayName is used when a connection arrives without a name.
const defaultDisplayName = "Guest"

// Connection is one live transport session. RoomID is empty while the
// connection is not in a room.
type Connection struct {
	ID          string
	UserID      string
	DisplayName string
	RoomID      string
}

// connectionRegistry maps live connection IDs to their metadata. It is not
// safe for concurrent use on its own; the Router serializes access together
// with the room table.
type connectionRegistry struct {
	conns map[string]*Connection
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{conns: make(map[string]*Connection)}
}

// register creates a record with no room. The transport guarantees fresh
// IDs, so ErrDuplicateConnection indicates a bug upstream.
func (r *connectionRegistry) register(id, userID, displayName string) error {
	if _, exists := r.conns[id]; exists {
		return ErrDuplicateConnection
	}
	if displayName == "" {
		displayName = defaultDisplayName
	}
	r.conns[id] = &Connection{ID: id, UserID: userID, DisplayName: displayName}
	return nil
}

func (r *connectionRegistry) lookup(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// setRoom updates the connection's current room; pass "" to clear it.
func (r *connectionRegistry) setRoom(id, roomID string) error {
	conn, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}
	conn.RoomID = roomID
	return nil
}

// remove deletes the record. Removing an unknown ID is a no-op.
func (r *connectionRegistry) remove(id string) {
	delete(r.conns, id)
}

func (r *connectionRegistry) count() int {
	return len(r.conns)
}
