// internal/game/sync_state.go
package game

// Viewer identifies who a snapshot is built for.
type Viewer struct {
	ID     string
	IsHost bool
}

// PlayerView is the public part of a seated player.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seat      int    `json:"seat"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

// HostView is the public part of the host record.
type HostView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Seated    bool   `json:"seated"`
}

// Snapshot is the per-viewer projection of a room. The Game field carries the
// machine-specific view, already redacted for the viewer.
type Snapshot struct {
	RoomID     int64        `json:"roomId"`
	GameType   GameType     `json:"gameType"`
	Status     Status       `json:"status"`
	Phase      Phase        `json:"phase"`
	Config     RoomConfig   `json:"config"`
	Host       HostView     `json:"host"`
	Players    []PlayerView `json:"players"`
	Clock      RoundClock   `json:"clock"`
	You        string       `json:"you"`
	IsHostView bool         `json:"isHostView"`
	Broken     bool         `json:"broken,omitempty"`
	Game       interface{}  `json:"game"`
}

// Project builds the snapshot of room r for one viewer. It reads the room
// without mutating it; the caller holds the room lock. The host view is the
// unredacted superset.
func Project(r *Room, viewerID string, isHostView bool) Snapshot {
	v := Viewer{ID: viewerID, IsHost: isHostView}
	snap := Snapshot{
		RoomID:   r.ID,
		GameType: r.GameType,
		Status:   r.Status,
		Phase:    r.Game.Phase(),
		Config:   r.Config,
		Host: HostView{
			ID:        r.Host.ID,
			Name:      r.Host.Name,
			Connected: r.Host.Connected,
			Seated:    r.HostSeatedUnsafe(),
		},
		Players:    make([]PlayerView, 0, len(r.Players)),
		Clock:      r.Clock,
		You:        viewerID,
		IsHostView: isHostView,
		Broken:     r.broken,
		Game:       r.Game.Project(r, v),
	}
	if r.Clock.EndsAt != nil {
		t := *r.Clock.EndsAt
		snap.Clock.EndsAt = &t
	}
	for _, p := range r.Players {
		snap.Players = append(snap.Players, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Seat:      p.Seat,
			Connected: p.Connected,
			IsHost:    p.ID == r.Host.ID,
		})
	}
	return snap
}
