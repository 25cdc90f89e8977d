package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// Status is the coarse lifecycle of a room.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
)

// RoundClock is the countdown state shared with clients. TimeLeft is derived
// from EndsAt on every tick; EndsAt is nil while no timer runs.
type RoundClock struct {
	TimeLeft int        `json:"timeLeft"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
}

// Room is one isolated game session. All fields are guarded by Mu; methods
// with the Unsafe suffix expect the caller to hold it.
type Room struct {
	ID int64
	// Key is unique across server restarts, unlike ID.
	Key       string
	GameType  GameType
	Config    RoomConfig
	Host      models.Host
	Players   []*models.Player
	Status    Status
	Game      Machine
	Clock     RoundClock
	CreatedAt time.Time

	Mu sync.Mutex

	guard  IdempotencyGuard
	timer  *roundTimer
	broken bool
	closed bool
	seats  int

	actionIndex int
}

func newRoom(id int64, host models.Host, cfg RoomConfig, m Machine) *Room {
	return &Room{
		ID:        id,
		Key:       uuid.NewString(),
		GameType:  cfg.GameType,
		Config:    cfg,
		Host:      host,
		Players:   []*models.Player{},
		Status:    StatusPending,
		Game:      m,
		CreatedAt: time.Now(),
		guard:     newIdempotencyGuard(),
	}
}

// MaxPlayers is the seat limit of the room.
func (r *Room) MaxPlayers() int { return r.Config.MaxPlayers }

// PlayerUnsafe returns the seated player with the given id, or nil.
func (r *Room) PlayerUnsafe(id string) *models.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// HostSeatedUnsafe reports whether the host also holds a seat.
func (r *Room) HostSeatedUnsafe() bool {
	return r.PlayerUnsafe(r.Host.ID) != nil
}

// IsMemberUnsafe reports whether the session is the host or a seated player.
func (r *Room) IsMemberUnsafe(id string) bool {
	return r.Host.ID == id || r.PlayerUnsafe(id) != nil
}

// PlayerIDsUnsafe returns the seated player ids in seat order.
func (r *Room) PlayerIDsUnsafe() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// NameOfUnsafe returns the display name of a player or the host.
func (r *Room) NameOfUnsafe(id string) string {
	if p := r.PlayerUnsafe(id); p != nil {
		return p.Name
	}
	if r.Host.ID == id {
		return r.Host.Name
	}
	return ""
}

// NamesUnsafe maps ids to display names, skipping unknown ids.
func (r *Room) NamesUnsafe(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := r.NameOfUnsafe(id); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// seatUnsafe appends a player with the next seat number.
func (r *Room) seatUnsafe(id, name, handle string) *models.Player {
	p := &models.Player{ID: id, Name: name, Seat: r.seats, Connected: handle != "", Handle: handle}
	r.seats++
	r.Players = append(r.Players, p)
	return p
}

// unseatUnsafe removes a player record.
func (r *Room) unseatUnsafe(id string) {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return
		}
	}
}

// onlineUnsafe reports whether the member currently has a live connection.
func (r *Room) onlineUnsafe(id string) bool {
	if p := r.PlayerUnsafe(id); p != nil {
		return p.Connected
	}
	return r.Host.ID == id && r.Host.Connected
}

// actorUnsafe resolves a session into an Actor or fails with
// ErrNotAParticipant.
func (r *Room) actorUnsafe(sessionID string) (Actor, error) {
	a := Actor{ID: sessionID, IsHost: r.Host.ID == sessionID, Player: r.PlayerUnsafe(sessionID)}
	if !a.IsHost && a.Player == nil {
		return Actor{}, ErrNotAParticipant
	}
	return a, nil
}

// TimedUnsafe reports whether a round timer is currently running.
func (r *Room) TimedUnsafe() bool { return r.timer != nil }
