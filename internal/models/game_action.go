package models

import (
	"bytes"
	"encoding/json"
)

// Action is one client request routed to a room. RequestID is optional; when
// present it is used to recognise retried submissions of the same action.
type Action struct {
	Type      string          `json:"type"`
	RoomID    int64           `json:"roomId"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the action payload into v. An absent payload leaves v
// untouched.
func (a Action) Decode(v interface{}) error {
	if len(bytes.TrimSpace(a.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(a.Payload), []byte("null")) {
		return nil
	}
	return json.Unmarshal(a.Payload, v)
}

// NewAction builds an action with a JSON payload. It is mostly useful for
// server-side callers and tests.
func NewAction(roomID int64, typ, requestID string, payload interface{}) Action {
	a := Action{Type: typ, RoomID: roomID, RequestID: requestID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			a.Payload = data
		}
	}
	return a
}

// ActionRecord is the history entry published for every applied action.
type ActionRecord struct {
	RoomID      int64           `json:"room_id"`
	RoomKey     string          `json:"room_key"`
	GameType    string          `json:"game_type"`
	ActionIndex int             `json:"action_index"`
	ActorID     string          `json:"actor_id"`
	ActionType  string          `json:"action_type"`
	Payload     json.RawMessage `json:"action_payload,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}
