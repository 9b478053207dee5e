package signaling

import "sort"

// RoomCount is one room's entry in the stats listing.
type RoomCount struct {
	RoomID    string `json:"roomId"`
	UserCount int    `json:"userCount"`
}

// Stats is a point-in-time view of the whole relay for monitoring.
type Stats struct {
	TotalRooms       int         `json:"totalRooms"`
	TotalConnections int         `json:"totalConnections"`
	Rooms            []RoomCount `json:"rooms"`
}

// RoomInfo describes a single room for operator inspection.
type RoomInfo struct {
	RoomID      string     `json:"roomId"`
	MemberCount int        `json:"memberCount"`
	Members     []UserInfo `json:"members"`
}

// Stats takes a consistent snapshot under the router lock. Safe to poll
// frequently; it never reports a room and a connection that disagree about
// each other.
func (rt *Router) Stats() Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	counts := rt.rooms.memberCounts()
	stats := Stats{
		TotalRooms:       len(counts),
		TotalConnections: rt.conns.count(),
		Rooms:            make([]RoomCount, 0, len(counts)),
	}
	for roomID, n := range counts {
		stats.Rooms = append(stats.Rooms, RoomCount{RoomID: roomID, UserCount: n})
	}
	sort.Slice(stats.Rooms, func(i, j int) bool {
		return stats.Rooms[i].RoomID < stats.Rooms[j].RoomID
	})
	return stats
}

// RoomInfo reports the room's occupants, or false if the room does not
// exist. Empty rooms never exist, so false also covers "empty".
func (rt *Router) RoomInfo(roomID string) (RoomInfo, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rm, ok := rt.rooms.rooms[roomID]
	if !ok {
		return RoomInfo{}, false
	}
	info := RoomInfo{
		RoomID:      roomID,
		MemberCount: len(rm.members),
		Members:     make([]UserInfo, 0, len(rm.members)),
	}
	for _, connID := range rm.members {
		conn, ok := rt.conns.lookup(connID)
		if !ok {
			continue
		}
		info.Members = append(info.Members, UserInfo{
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			DisplayName:  conn.DisplayName,
		})
	}
	return info, true
}
