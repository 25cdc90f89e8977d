package models

// Session is the identity handed to the transport layer after a token has
// been verified. Only the ID is consumed by the room engine.
type Session struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGuest bool   `json:"isGuest"`
}
