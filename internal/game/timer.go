package game

import (
	"fmt"
	"math"
	"time"

	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
)

// roundTimer is the single live countdown of a room. Identity comparison
// against Room.timer detects ticks from a timer that has since been replaced.
type roundTimer struct {
	stop chan struct{}
}

// PhaseTick is the payload of EventPhaseTick.
type PhaseTick struct {
	Phase    Phase `json:"phase"`
	TimeLeft int   `json:"timeLeft"`
}

// startTimerUnsafe replaces any running countdown with a new one.
func (e *Engine) startTimerUnsafe(r *Room, seconds int) {
	e.stopTimerUnsafe(r)
	endsAt := time.Now().Add(secondsOf(seconds, e.second))
	r.Clock = RoundClock{TimeLeft: seconds, EndsAt: &endsAt}
	t := &roundTimer{stop: make(chan struct{})}
	r.timer = t
	go e.runTimer(r, t)
}

// stopTimerUnsafe tears the countdown down and clears the clock.
func (e *Engine) stopTimerUnsafe(r *Room) {
	if r.timer != nil {
		close(r.timer.stop)
		r.timer = nil
	}
	r.Clock = RoundClock{}
}

func (e *Engine) runTimer(r *Room, t *roundTimer) {
	ticker := time.NewTicker(e.second)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if done := e.tick(r, t); done {
				return
			}
		}
	}
}

// tick advances the clock by one step. At zero the timer removes itself before
// calling the machine's ForceEnd, which is the same entry point the host's
// force_end action uses.
func (e *Engine) tick(r *Room, t *roundTimer) (done bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.timer != t || r.closed || r.broken {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			e.breakRoomUnsafe(r, fmt.Errorf("panic in round timer: %v", rec))
			done = true
		}
	}()

	r.Clock.TimeLeft = timeLeft(r.Clock.EndsAt, e.second)
	e.transport.BroadcastToRoom(r.ID, EventPhaseTick, PhaseTick{Phase: r.Game.Phase(), TimeLeft: r.Clock.TimeLeft})
	if a, ok := r.Game.(Animator); ok {
		for _, ev := range a.Tick(r) {
			e.deliverUnsafe(r, ev)
		}
	}
	if r.Clock.TimeLeft > 0 {
		return false
	}

	e.stopTimerUnsafe(r)
	e.logger.WithFields(logrus.Fields{"room": r.ID, "phase": r.Game.Phase()}).Debug("round timer expired")
	out, err := r.Game.ForceEnd(r)
	if err != nil {
		e.breakRoomUnsafe(r, err)
		return true
	}
	e.commitUnsafe(r, System, models.Action{Type: ActionTimerExpired, RoomID: r.ID}, out)
	return true
}

// timeLeft is max(0, round(endsAt - now)) in whole units.
func timeLeft(endsAt *time.Time, unit time.Duration) int {
	if endsAt == nil {
		return 0
	}
	left := int(math.Round(float64(time.Until(*endsAt)) / float64(unit)))
	if left < 0 {
		return 0
	}
	return left
}

// breakRoomUnsafe stops a room whose timer path hit an internal error. Other
// rooms are unaffected; the room rejects further actions with ErrRoomBroken.
func (e *Engine) breakRoomUnsafe(r *Room, err error) {
	r.broken = true
	e.stopTimerUnsafe(r)
	e.logger.WithFields(logrus.Fields{"room": r.ID, "game": r.GameType}).WithError(err).Error("room stopped")
	e.transport.BroadcastToRoom(r.ID, EventRoomError, map[string]interface{}{
		"roomId":  r.ID,
		"code":    ErrorCode(ErrRoomBroken),
		"message": ErrRoomBroken.Error(),
	})
}
