package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// GameType keys the variant of a room's game data.
type GameType string

const (
	GameHorse   GameType = "horse"
	GameAnimal  GameType = "animal"
	GameJamo    GameType = "jamo"
	GameMystery GameType = "mystery"
)

// Phase is the current named stage of a room's state machine. Each game type
// defines its own finite set of phases.
type Phase string

// Actions shared by every machine. Machines add their own on top.
const (
	ActionStartRound = "start_round"
	ActionForceEnd   = "force_end"
	ActionAdvance    = "advance"
	ActionReset      = "reset"

	// ActionUpdateSettings is handled by the engine itself while no game is
	// running.
	ActionUpdateSettings = "update_settings"

	// ActionTimerExpired is recorded in the history for timer-driven ends.
	ActionTimerExpired = "timer_expired"

	// History-only markers.
	ActionGameOver   = "game_over"
	ActionRoomClosed = "room_closed"
)

// ActionSpec declares when and by whom an action may be invoked. The engine
// enforces it uniformly before the machine sees the action.
type ActionSpec struct {
	Phases []Phase

	// HostOnly restricts the action to the host session.
	HostOnly bool

	// GameMasterOnly additionally requires that the host is not seated.
	GameMasterOnly bool

	// PlayerOnly restricts the action to seated players.
	PlayerOnly bool
}

// Allows reports whether the phase is in the allowed set.
func (s ActionSpec) Allows(p Phase) bool {
	for _, allowed := range s.Phases {
		if allowed == p {
			return true
		}
	}
	return false
}

// Actor is the validated identity behind an action.
type Actor struct {
	ID     string
	IsHost bool

	// Player is nil when the actor holds no seat.
	Player *models.Player
}

// System is the actor used for timer-driven transitions.
var System = Actor{ID: "system"}

// Reply holds the extra fields of a successful acknowledgement.
type Reply map[string]interface{}

// TimerDirective tells the engine what to do with the room's round timer
// after a mutation.
type TimerDirective struct {
	Cancel  bool
	Seconds int
}

// StartTimer asks for a fresh countdown of the given length.
func StartTimer(seconds int) *TimerDirective { return &TimerDirective{Seconds: seconds} }

// CancelTimer asks for the running countdown to be dropped.
func CancelTimer() *TimerDirective { return &TimerDirective{Cancel: true} }

// GameOver is reported once when a game reaches its terminal phase.
type GameOver struct {
	GameID  string
	Winners []string
}

// AsyncStep carries external I/O that must not run under the room lock. Run
// executes outside the lock; Apply re-enters the serialized path with the
// result and must re-validate anything that may have changed meanwhile.
type AsyncStep struct {
	Run   func(ctx context.Context) interface{}
	Apply func(r *Room, actor Actor, result interface{}) (Outcome, error)
}

// Outcome is the explicit result of a state-machine call. Broadcasting is a
// separate step the engine performs after a successful mutation.
type Outcome struct {
	Reply    Reply
	Events   []Event
	Timer    *TimerDirective
	Async    *AsyncStep
	GameOver *GameOver

	// ResetRoom releases per-room idempotency state.
	ResetRoom bool

	// Quiet skips the snapshot rebroadcast.
	Quiet bool
}

// Merge appends the events of o2 to o and takes over its other fields when set.
func (o Outcome) Merge(o2 Outcome) Outcome {
	o.Events = append(o.Events, o2.Events...)
	if o2.Reply != nil {
		if o.Reply == nil {
			o.Reply = Reply{}
		}
		for k, v := range o2.Reply {
			o.Reply[k] = v
		}
	}
	if o2.Timer != nil {
		o.Timer = o2.Timer
	}
	if o2.Async != nil {
		o.Async = o2.Async
	}
	if o2.GameOver != nil {
		o.GameOver = o2.GameOver
	}
	o.ResetRoom = o.ResetRoom || o2.ResetRoom
	o.Quiet = o.Quiet && o2.Quiet
	return o
}

// Machine is the authoritative phase graph and mutation logic of one game
// type. Every method is called with the room lock held and must not block.
type Machine interface {
	Type() GameType
	Phase() Phase

	// Running reports whether a game is underway, i.e. the phase is neither
	// the initial nor a terminal one.
	Running() bool

	// Actions lists every action the machine accepts with its gating rules.
	Actions() map[string]ActionSpec

	// Handle applies one validated action.
	Handle(r *Room, actor Actor, action models.Action) (Outcome, error)

	// StartRound opens a timed round.
	StartRound(r *Room, seconds int) (Outcome, error)

	// ForceEnd is the single entry point for both timer expiry and the
	// host's manual force end.
	ForceEnd(r *Room) (Outcome, error)

	// Reset returns the machine to its initial phase, reusing the room.
	Reset(r *Room) Outcome

	// Project builds the game-specific part of a viewer's snapshot. It must
	// be a pure function of the room state and the viewer.
	Project(r *Room, v Viewer) interface{}
}

// Animator is implemented by machines that stream progress while a timed
// phase runs. Tick is called under the room lock on every timer step before
// expiry is handled; its events go out right after the phase tick.
type Animator interface {
	Tick(r *Room) []Event
}

// Factory builds a fresh machine for a new room.
type Factory func(cfg RoomConfig) (Machine, error)

// secondsOf converts whole seconds to a duration using the engine's unit.
func secondsOf(n int, unit time.Duration) time.Duration {
	return time.Duration(n) * unit
}
