package models

import "encoding/json"

// Envelope is the client-to-server wire frame. Only the fields relevant to
// the named type are expected to be present; payloads stay opaque raw JSON
// so the relay never interprets SDP or candidate contents.
type Envelope struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	To        string          `json:"to,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
