package game

import (
	"context"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// Transport delivers push events. Implementations must not block: the engine
// calls them while holding a room lock.
type Transport interface {
	SendToSession(sessionID string, event EventType, payload interface{})
	BroadcastToRoom(roomID int64, event EventType, payload interface{})

	// JoinRoom and LeaveRoom maintain the broadcast group of a room.
	JoinRoom(roomID int64, sessionID string)
	LeaveRoom(roomID int64, sessionID string)
}

// Ranking is one row of a leaderboard.
type Ranking struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// Leaderboard persists game winners. Calls from the engine are fire-and-forget.
type Leaderboard interface {
	RecordWinners(ctx context.Context, gameID string, names []string) error
	GetLeaderboard(ctx context.Context, gameID string, limit int) ([]Ranking, error)
}

// ActionRecorder receives the history of applied actions.
type ActionRecorder interface {
	RecordAction(ctx context.Context, rec models.ActionRecord) error
}

type nopTransport struct{}

func (nopTransport) SendToSession(string, EventType, interface{})  {}
func (nopTransport) BroadcastToRoom(int64, EventType, interface{}) {}
func (nopTransport) JoinRoom(int64, string)                        {}
func (nopTransport) LeaveRoom(int64, string)                       {}
