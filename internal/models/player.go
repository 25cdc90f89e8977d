package models

// Player is a seated participant of a room.
//
// ID is the stable session id supplied by the identity layer and never
// changes for the lifetime of the room. Handle identifies the live transport
// connection and is rebound on reconnect; game state is keyed by ID only, so
// rebinding never touches it.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seat      int    `json:"seat"`
	Connected bool   `json:"connected"`
	Handle    string `json:"-"`
}

// Host is the privileged session that created the room. The host may also
// hold a seat, in which case it appears in the room's player list as well.
type Host struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Handle    string `json:"-"`
}
