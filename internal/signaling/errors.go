package signaling

import "errors"

// Custom error definitions. All of these are local to a single request and
// never fatal to the router.
var (
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrNotFound            = errors.New("connection not found")
	ErrRoomFull            = errors.New("room is full")
	ErrAlreadyMember       = errors.New("already a member of the room")
)
