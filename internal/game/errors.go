package game

import (
	"errors"
	"fmt"
)

// Sentinel errors returned at the action boundary. Callers compare with
// errors.Is; the transport reports them to the calling session only.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrNotAParticipant      = errors.New("session is not a participant of this room")
	ErrWrongPhase           = errors.New("action is not allowed in the current phase")
	ErrNotHost              = errors.New("only the host can do this")
	ErrNotGameMaster        = errors.New("only a non-playing game master can do this")
	ErrInvalidTarget        = errors.New("invalid target")
	ErrCooldownActive       = errors.New("ability is on cooldown")
	ErrNoUsesRemaining      = errors.New("ability has no uses remaining")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrAlreadyInAnotherRoom = errors.New("session already belongs to another room")
	ErrRoomFull             = errors.New("room is full")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrUnknownAction        = errors.New("unknown action")
	ErrUnknownGameType      = errors.New("unknown game type")
	ErrRoomBroken           = errors.New("room stopped after an internal error")
	ErrInvalidConfiguration = errors.New("invalid room configuration")
	ErrRoomNotPending       = errors.New("room can only be closed while no game is in progress")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrNotAParticipant, "not_a_participant"},
	{ErrWrongPhase, "wrong_phase"},
	{ErrNotHost, "not_host"},
	{ErrNotGameMaster, "not_game_master"},
	{ErrInvalidTarget, "invalid_target"},
	{ErrCooldownActive, "cooldown_active"},
	{ErrNoUsesRemaining, "no_uses_remaining"},
	{ErrDuplicateRequest, "duplicate_request"},
	{ErrInsufficientResource, "insufficient_resource"},
	{ErrAlreadyInAnotherRoom, "already_in_another_room"},
	{ErrRoomFull, "room_full"},
	{ErrInvalidPayload, "invalid_payload"},
	{ErrUnknownAction, "unknown_action"},
	{ErrUnknownGameType, "unknown_game_type"},
	{ErrRoomBroken, "room_broken"},
	{ErrInvalidConfiguration, "invalid_configuration"},
	{ErrRoomNotPending, "room_not_pending"},
}

// ActionError attaches a player-facing message to one of the sentinel errors.
type ActionError struct {
	Err error
	Msg string
}

func (e *ActionError) Error() string {
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *ActionError) Unwrap() error { return e.Err }

// Errorf wraps a sentinel with a formatted message.
func Errorf(sentinel error, format string, args ...interface{}) error {
	return &ActionError{Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

// ErrorCode maps an error to the stable code sent in failed acknowledgements.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}
