package game

import "time"

// EventType names a push event sent to clients.
type EventType string

const (
	EventRoomState   EventType = "room_state"
	EventPhaseTick   EventType = "phase_tick"
	EventPhaseChange EventType = "phase_change"
	EventRoundResult EventType = "round_result"
	EventLog         EventType = "log"
	EventGameOver    EventType = "game_over"
	EventRoomClosed  EventType = "room_closed"
	EventRoomError   EventType = "room_error"
	EventPrivate     EventType = "private"
)

// Scope decides who receives a point event.
type Scope int

const (
	// ScopeRoom reaches every connected session of the room.
	ScopeRoom Scope = iota
	// ScopeHost reaches the host only.
	ScopeHost
	// ScopeSession reaches Event.To only.
	ScopeSession
	// ScopeSessionAndHost reaches Event.To and the host.
	ScopeSessionAndHost
)

// Event is a point event produced by a mutation.
type Event struct {
	Type    EventType
	Scope   Scope
	To      string
	Payload interface{}
}

// RoomEvent is a convenience constructor for a room-wide event.
func RoomEvent(t EventType, payload interface{}) Event {
	return Event{Type: t, Scope: ScopeRoom, Payload: payload}
}

// PrivateEvent is a convenience constructor for an event only the given
// session (and the host) may see.
func PrivateEvent(t EventType, to string, payload interface{}) Event {
	return Event{Type: t, Scope: ScopeSessionAndHost, To: to, Payload: payload}
}

// LogEntry is one line of a room's action log. Entries with an Owner are
// private to that owner and the host.
type LogEntry struct {
	At    time.Time              `json:"at"`
	Round int                    `json:"round"`
	Kind  string                 `json:"kind"`
	Text  string                 `json:"text"`
	Owner string                 `json:"owner,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Visible reports whether the viewer may read the entry.
func (e LogEntry) Visible(v Viewer) bool {
	return e.Owner == "" || v.IsHost || e.Owner == v.ID
}

// LogEvent wraps a log entry in an event with the matching scope.
func LogEvent(e LogEntry) Event {
	if e.Owner == "" {
		return RoomEvent(EventLog, e)
	}
	return PrivateEvent(EventLog, e.Owner, e)
}

// PhaseChange is the payload of EventPhaseChange.
type PhaseChange struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

// PhaseChangeEvent announces a transition.
func PhaseChangeEvent(from, to Phase) Event {
	return RoomEvent(EventPhaseChange, PhaseChange{From: from, To: to})
}
