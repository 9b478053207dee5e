package signaling

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
)

type sentEvent struct {
	to    string
	event Outbound
}

// recordingSender captures every outbound event so tests can assert on
// addressing and payloads. It records sends to unknown IDs too; the real
// transport drops those, the router must simply not care.
type recordingSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (s *recordingSender) Send(to string, ev Outbound) {
	s.mu.Lock()
	s.events = append(s.events, sentEvent{to: to, event: ev})
	s.mu.Unlock()
}

func (s *recordingSender) sentTo(to string) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Outbound
	for _, e := range s.events {
		if e.to == to {
			out = append(out, e.event)
		}
	}
	return out
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

func newTestRouter(t *testing.T) (*Router, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(sender, logger), sender
}

func TestJoin_FirstThenSecond(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Register("B", "u-b", "Bob")

	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	got := sender.sentTo("A")
	if len(got) != 1 {
		t.Fatalf("A received %d events, want 1", len(got))
	}
	joined, ok := got[0].(RoomJoined)
	if !ok {
		t.Fatalf("A received %T, want RoomJoined", got[0])
	}
	if joined.RoomID != "r1" || len(joined.Users) != 0 {
		t.Fatalf("room-joined=%+v, want room r1 with no peers", joined)
	}

	sender.reset()
	rt.Dispatch("B", JoinRoom{RoomID: "r1"})

	bGot := sender.sentTo("B")
	if len(bGot) != 1 {
		t.Fatalf("B received %d events, want 1", len(bGot))
	}
	bJoined := bGot[0].(RoomJoined)
	wantUsers := []UserInfo{{ConnectionID: "A", UserID: "u-a", DisplayName: "Alice"}}
	if bJoined.RoomID != "r1" || !reflect.DeepEqual(bJoined.Users, wantUsers) {
		t.Fatalf("room-joined=%+v, want users=%v", bJoined, wantUsers)
	}

	aGot := sender.sentTo("A")
	if len(aGot) != 1 {
		t.Fatalf("A received %d events, want 1", len(aGot))
	}
	userJoined, ok := aGot[0].(UserJoined)
	if !ok {
		t.Fatalf("A received %T, want UserJoined", aGot[0])
	}
	if userJoined.ConnectionID != "B" || userJoined.UserID != "u-b" || userJoined.DisplayName != "Bob" {
		t.Fatalf("user-joined=%+v, want B/u-b/Bob", userJoined)
	}
}

func TestJoin_RoomFull(t *testing.T) {
	rt, sender := newTestRouter(t)
	for _, id := range []string{"A", "B", "C"} {
		rt.Register(id, "u-"+id, id)
	}
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	rt.Dispatch("B", JoinRoom{RoomID: "r1"})
	sender.reset()

	rt.Dispatch("C", JoinRoom{RoomID: "r1"})

	cGot := sender.sentTo("C")
	if len(cGot) != 1 {
		t.Fatalf("C received %d events, want 1", len(cGot))
	}
	errEv, ok := cGot[0].(ErrorEvent)
	if !ok || errEv.Message != "Room is full" {
		t.Fatalf("C received %+v, want error 'Room is full'", cGot[0])
	}
	// Existing members saw nothing and membership is unchanged.
	if got := sender.sentTo("A"); got != nil {
		t.Fatalf("A received %v, want nothing", got)
	}
	info, ok := rt.RoomInfo("r1")
	if !ok || info.MemberCount != 2 {
		t.Fatalf("roomInfo=%+v ok=%v, want 2 members", info, ok)
	}
}

func TestJoin_InvalidRoomID(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")

	rt.Dispatch("A", JoinRoom{RoomID: ""})
	got := sender.sentTo("A")
	if len(got) != 1 {
		t.Fatalf("A received %d events, want 1", len(got))
	}
	if errEv, ok := got[0].(ErrorEvent); !ok || errEv.Message != "Invalid room ID" {
		t.Fatalf("got %+v, want error 'Invalid room ID'", got[0])
	}
}

func TestJoin_DuplicateIsSilent(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	sender.reset()

	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	if got := sender.sentTo("A"); got != nil {
		t.Fatalf("duplicate join emitted %v, want nothing", got)
	}
	info, _ := rt.RoomInfo("r1")
	if info.MemberCount != 1 {
		t.Fatalf("members=%d, want 1", info.MemberCount)
	}
}

func TestJoin_MigratesFromOldRoom(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Register("B", "u-b", "Bob")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	rt.Dispatch("B", JoinRoom{RoomID: "r1"})
	sender.reset()

	rt.Dispatch("A", JoinRoom{RoomID: "r2"})

	// B sees exactly one user-left for the old room.
	bGot := sender.sentTo("B")
	if len(bGot) != 1 {
		t.Fatalf("B received %d events, want 1", len(bGot))
	}
	if left, ok := bGot[0].(UserLeft); !ok || left.ConnectionID != "A" {
		t.Fatalf("B received %+v, want user-left for A", bGot[0])
	}

	// A sees exactly one room-joined for the new room, no room-left.
	aGot := sender.sentTo("A")
	if len(aGot) != 1 {
		t.Fatalf("A received %d events, want 1", len(aGot))
	}
	if joined, ok := aGot[0].(RoomJoined); !ok || joined.RoomID != "r2" {
		t.Fatalf("A received %+v, want room-joined r2", aGot[0])
	}

	r1, _ := rt.RoomInfo("r1")
	r2, _ := rt.RoomInfo("r2")
	if r1.MemberCount != 1 || r2.MemberCount != 1 {
		t.Fatalf("r1=%d r2=%d members, want 1 and 1", r1.MemberCount, r2.MemberCount)
	}
}

func TestJoin_MigrationDeletesEmptiedRoom(t *testing.T) {
	rt, _ := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})

	rt.Dispatch("A", JoinRoom{RoomID: "r2"})
	if _, ok := rt.RoomInfo("r1"); ok {
		t.Fatalf("r1 still exists after its last member migrated away")
	}
}

func TestLeave_Explicit(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Register("B", "u-b", "Bob")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	rt.Dispatch("B", JoinRoom{RoomID: "r1"})
	sender.reset()

	rt.Dispatch("A", LeaveRoom{})

	aGot := sender.sentTo("A")
	if len(aGot) != 1 {
		t.Fatalf("A received %d events, want 1", len(aGot))
	}
	if left, ok := aGot[0].(RoomLeft); !ok || left.RoomID != "r1" {
		t.Fatalf("A received %+v, want room-left r1", aGot[0])
	}
	bGot := sender.sentTo("B")
	if len(bGot) != 1 {
		t.Fatalf("B received %d events, want 1", len(bGot))
	}
	if left, ok := bGot[0].(UserLeft); !ok || left.ConnectionID != "A" || left.UserID != "u-a" {
		t.Fatalf("B received %+v, want user-left A/u-a", bGot[0])
	}
}

func TestLeave_LastMemberDeletesRoom(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	rt.Dispatch("A", LeaveRoom{})

	if _, ok := rt.RoomInfo("r1"); ok {
		t.Fatalf("r1 still exists after its last member left")
	}

	// A fresh, unrelated join still works.
	sender.reset()
	rt.Dispatch("A", JoinRoom{RoomID: "r2"})
	got := sender.sentTo("A")
	if len(got) != 1 {
		t.Fatalf("A received %d events, want 1", len(got))
	}
	if joined, ok := got[0].(RoomJoined); !ok || joined.RoomID != "r2" {
		t.Fatalf("A received %+v, want room-joined r2", got[0])
	}
}

func TestLeave_WithoutRoomIsNoop(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")

	rt.Dispatch("A", LeaveRoom{})
	rt.Dispatch("ghost", LeaveRoom{})
	if len(sender.events) != 0 {
		t.Fatalf("events=%v, want none", sender.events)
	}
}

func TestRelay_DeliversVerbatimToTargetOnly(t *testing.T) {
	rt, sender := newTestRouter(t)
	for _, id := range []string{"A", "B", "C"} {
		rt.Register(id, "u-"+id, id)
	}
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	rt.Dispatch("B", JoinRoom{RoomID: "r1"})
	sender.reset()

	payload := json.RawMessage(`{"sdp":"x"}`)
	rt.Dispatch("A", Offer{To: "B", Offer: payload})

	bGot := sender.sentTo("B")
	if len(bGot) != 1 {
		t.Fatalf("B received %d events, want 1", len(bGot))
	}
	offer, ok := bGot[0].(OfferEvent)
	if !ok {
		t.Fatalf("B received %T, want OfferEvent", bGot[0])
	}
	if offer.From != "A" || string(offer.Offer) != `{"sdp":"x"}` {
		t.Fatalf("offer=%+v, want from=A payload verbatim", offer)
	}
	if got := sender.sentTo("A"); got != nil {
		t.Fatalf("A received %v, want nothing", got)
	}
	if got := sender.sentTo("C"); got != nil {
		t.Fatalf("C received %v, want nothing", got)
	}
}

func TestRelay_AllKinds(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Register("B", "u-b", "Bob")
	payload := json.RawMessage(`{"k":1}`)

	tests := []struct {
		name string
		ev   Inbound
		want EventType
	}{
		{"offer", Offer{To: "B", Offer: payload}, EventOffer},
		{"answer", Answer{To: "B", Answer: payload}, EventAnswer},
		{"ice-candidate", ICECandidate{To: "B", Candidate: payload}, EventICECandidate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender.reset()
			rt.Dispatch("A", tc.ev)
			got := sender.sentTo("B")
			if len(got) != 1 {
				t.Fatalf("B received %d events, want 1", len(got))
			}
			var kind EventType
			var from string
			switch ev := got[0].(type) {
			case OfferEvent:
				kind, from = ev.Type, ev.From
			case AnswerEvent:
				kind, from = ev.Type, ev.From
			case ICECandidateEvent:
				kind, from = ev.Type, ev.From
			default:
				t.Fatalf("B received %T", got[0])
			}
			if kind != tc.want || from != "A" {
				t.Fatalf("kind=%q from=%q, want %q from A", kind, from, tc.want)
			}
		})
	}
}

func TestRelay_InvalidData(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")

	tests := []struct {
		name    string
		ev      Inbound
		wantMsg string
	}{
		{"offer missing target", Offer{Offer: json.RawMessage(`{}`)}, "Invalid offer data"},
		{"offer missing payload", Offer{To: "B"}, "Invalid offer data"},
		{"answer missing target", Answer{Answer: json.RawMessage(`{}`)}, "Invalid answer data"},
		{"candidate missing payload", ICECandidate{To: "B"}, "Invalid ice-candidate data"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender.reset()
			rt.Dispatch("A", tc.ev)
			got := sender.sentTo("A")
			if len(got) != 1 {
				t.Fatalf("A received %d events, want 1", len(got))
			}
			if errEv, ok := got[0].(ErrorEvent); !ok || errEv.Message != tc.wantMsg {
				t.Fatalf("got %+v, want error %q", got[0], tc.wantMsg)
			}
		})
	}
}

func TestRelay_UnreachableTargetStaysSilent(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")

	rt.Dispatch("A", Offer{To: "nobody", Offer: json.RawMessage(`{}`)})
	// Best-effort: the send goes out, no error comes back to the sender.
	if got := sender.sentTo("A"); got != nil {
		t.Fatalf("A received %v, want nothing", got)
	}
}

func TestDisconnect_NotifiesPeerAndCleansUp(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Register("B", "u-b", "Bob")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})
	rt.Dispatch("B", JoinRoom{RoomID: "r1"})
	sender.reset()

	rt.Dispatch("A", Disconnect{})

	// No room-left back to the gone transport.
	if got := sender.sentTo("A"); got != nil {
		t.Fatalf("A received %v, want nothing", got)
	}
	bGot := sender.sentTo("B")
	if len(bGot) != 1 {
		t.Fatalf("B received %d events, want 1", len(bGot))
	}
	if left, ok := bGot[0].(UserLeft); !ok || left.ConnectionID != "A" {
		t.Fatalf("B received %+v, want user-left A", bGot[0])
	}

	stats := rt.Stats()
	if stats.TotalRooms != 1 || stats.TotalConnections != 1 {
		t.Fatalf("stats=%+v, want 1 room 1 connection", stats)
	}
	if len(stats.Rooms) != 1 || stats.Rooms[0].UserCount != 1 {
		t.Fatalf("rooms=%+v, want r1 with 1 user", stats.Rooms)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	rt, sender := newTestRouter(t)
	rt.Register("A", "u-a", "Alice")
	rt.Dispatch("A", JoinRoom{RoomID: "r1"})

	rt.Dispatch("A", Disconnect{})
	sender.reset()
	rt.Dispatch("A", Disconnect{})

	if len(sender.events) != 0 {
		t.Fatalf("second disconnect emitted %v, want nothing", sender.events)
	}
	if stats := rt.Stats(); stats.TotalRooms != 0 || stats.TotalConnections != 0 {
		t.Fatalf("stats=%+v, want everything empty", stats)
	}
}

func TestConcurrentJoins_CapacityHolds(t *testing.T) {
	rt, sender := newTestRouter(t)
	const n = 8
	for i := 0; i < n; i++ {
		rt.Register(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i), "")
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			rt.Dispatch(id, JoinRoom{RoomID: "contested"})
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	var succeeded, rejected int
	sender.mu.Lock()
	for _, e := range sender.events {
		switch ev := e.event.(type) {
		case RoomJoined:
			succeeded++
		case ErrorEvent:
			if ev.Message != "Room is full" {
				t.Errorf("unexpected error %q", ev.Message)
			}
			rejected++
		}
	}
	sender.mu.Unlock()

	if succeeded != roomCapacity || rejected != n-roomCapacity {
		t.Fatalf("succeeded=%d rejected=%d, want %d and %d", succeeded, rejected, roomCapacity, n-roomCapacity)
	}
	info, ok := rt.RoomInfo("contested")
	if !ok || info.MemberCount != roomCapacity {
		t.Fatalf("roomInfo=%+v ok=%v, want exactly %d members", info, ok, roomCapacity)
	}
}
