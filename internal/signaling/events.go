package signaling

import "encoding/json"

// EventType names an event on the wire.
type EventType string

const (
	EventJoinRoom     EventType = "join-room"
	EventLeaveRoom    EventType = "leave-room"
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice-candidate"

	EventRoomJoined EventType = "room-joined"
	EventUserJoined EventType = "user-joined"
	EventUserLeft   EventType = "user-left"
	EventRoomLeft   EventType = "room-left"
	EventError      EventType = "error"
)

// Inbound is the closed set of events a connection can deliver to the
// router. New event kinds are added here and handled in Router.Dispatch;
// there is no default no-op case.
type Inbound interface{ inbound() }

// JoinRoom asks to enter the named room.
type JoinRoom struct {
	RoomID string
}

// LeaveRoom leaves the current room, if any.
type LeaveRoom struct{}

// Offer forwards an SDP offer to another connection.
type Offer struct {
	To    string
	Offer json.RawMessage
}

// Answer forwards an SDP answer to another connection.
type Answer struct {
	To     string
	Answer json.RawMessage
}

// ICECandidate forwards an ICE candidate to another connection.
type ICECandidate struct {
	To        string
	Candidate json.RawMessage
}

// Disconnect is emitted by the transport when the connection is gone.
// It is cleanup, not a request, and never fails.
type Disconnect struct{}

func (JoinRoom) inbound()     {}
func (LeaveRoom) inbound()    {}
func (Offer) inbound()        {}
func (Answer) inbound()       {}
func (ICECandidate) inbound() {}
func (Disconnect) inbound()   {}

// Outbound is an event the router addresses to a single connection.
type Outbound interface{ outbound() }

// UserInfo describes a room occupant in presence events.
type UserInfo struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId,omitempty"`
	DisplayName  string `json:"displayName"`
}

// RoomJoined confirms a join to the joining connection. Users lists the
// other occupants in join order.
type RoomJoined struct {
	Type   EventType  `json:"type"`
	RoomID string     `json:"roomId"`
	Users  []UserInfo `json:"users"`
}

// UserJoined notifies an existing occupant that a peer entered the room.
type UserJoined struct {
	Type         EventType `json:"type"`
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId,omitempty"`
	DisplayName  string    `json:"displayName"`
}

// UserLeft notifies the remaining occupant that a peer left the room.
type UserLeft struct {
	Type         EventType `json:"type"`
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId,omitempty"`
}

// RoomLeft confirms an explicit leave to the leaving connection.
type RoomLeft struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"roomId"`
}

// OfferEvent carries a relayed SDP offer.
type OfferEvent struct {
	Type  EventType       `json:"type"`
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// AnswerEvent carries a relayed SDP answer.
type AnswerEvent struct {
	Type   EventType       `json:"type"`
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

// ICECandidateEvent carries a relayed ICE candidate.
type ICECandidateEvent struct {
	Type      EventType       `json:"type"`
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// ErrorEvent reports a rejected request back to the offending caller.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

func (RoomJoined) outbound()        {}
func (UserJoined) outbound()        {}
func (UserLeft) outbound()          {}
func (RoomLeft) outbound()          {}
func (OfferEvent) outbound()        {}
func (AnswerEvent) outbound()       {}
func (ICECandidateEvent) outbound() {}
func (ErrorEvent) outbound()        {}

func errorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}
