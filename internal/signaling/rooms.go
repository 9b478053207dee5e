package signaling

// roomCapacity is the hard member cap per room. The relay only negotiates
// two-party sessions.
const roomCapacity = 2

// room is a rendezvous point named by the caller. Members are kept in join
// order so presence listings are deterministic.
type room struct {
	id      string
	members []string
}

func (rm *room) hasMember(connID string) bool {
	for _, id := range rm.members {
		if id == connID {
			return true
		}
	}
	return false
}

// roomTable maps room IDs to their occupants. Rooms are created lazily on
// the first join and deleted as soon as the last member leaves; an empty
// room is never observable. Like connectionRegistry, it relies on the
// Router for locking.
type roomTable struct {
	rooms map[string]*room
}

func newRoomTable() *roomTable {
	return &roomTable{rooms: make(map[string]*room)}
}

// ensure returns the room, creating an empty one if needed.
func (t *roomTable) ensure(roomID string) *room {
	rm, ok := t.rooms[roomID]
	if !ok {
		rm = &room{id: roomID}
		t.rooms[roomID] = rm
	}
	return rm
}

// tryAddMember adds connID to the room. The room must exist (ensure first).
// A full room rejects rather than evicts.
func (t *roomTable) tryAddMember(roomID, connID string) error {
	rm, ok := t.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if rm.hasMember(connID) {
		return ErrAlreadyMember
	}
	if len(rm.members) >= roomCapacity {
		return ErrRoomFull
	}
	rm.members = append(rm.members, connID)
	return nil
}

// removeMember drops connID from the room and deletes the room when it
// becomes empty. Unknown rooms and non-members are no-ops.
func (t *roomTable) removeMember(roomID, connID string) {
	rm, ok := t.rooms[roomID]
	if !ok {
		return
	}
	for i, id := range rm.members {
		if id == connID {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			break
		}
	}
	if len(rm.members) == 0 {
		delete(t.rooms, roomID)
	}
}

// otherMembers returns the occupants of roomID except connID, in join
// order. Returns nil for unknown rooms.
func (t *roomTable) otherMembers(roomID, connID string) []string {
	rm, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	var others []string
	for _, id := range rm.members {
		if id != connID {
			others = append(others, id)
		}
	}
	return others
}

// memberCounts reports the member count of every room.
func (t *roomTable) memberCounts() map[string]int {
	counts := make(map[string]int, len(t.rooms))
	for id, rm := range t.rooms {
		counts[id] = len(rm.members)
	}
	return counts
}
