package jamo

import (
	"maps"

	"github.com/jason-s-yu/partyroom/internal/game"
)

// View is the Jamo-Word part of a snapshot.
type View struct {
	Round       int             `json:"round"`
	TotalRounds int             `json:"totalRounds"`
	Board       map[int]string  `json:"board,omitempty"`
	Scores      map[string]int  `json:"scores"`
	Words       []Word          `json:"words"`
	WordCap     int             `json:"wordCap"`
	WordsLeft   int             `json:"wordsLeft"`
	Log         []game.LogEntry `json:"log"`
}

// Project shows the board only while a round is being played or reviewed.
// Accepted words are public; rejected attempts stay in their owner's log.
func (m *Machine) Project(r *game.Room, v game.Viewer) interface{} {
	view := View{
		Round:       m.round,
		TotalRounds: r.Config.TotalRounds,
		WordCap:     r.Config.WordCap,
		Scores:      maps.Clone(m.scores),
		Words:       append([]Word{}, m.words...),
		Log:         game.FilterLog(m.log, v),
	}
	if m.phase == PhasePlaying || m.phase == PhaseRoundEnd {
		view.Board = m.board.Strings()
	}
	if r.PlayerUnsafe(v.ID) != nil {
		view.WordsLeft = r.Config.WordCap - m.accepted[v.ID]
		if view.WordsLeft < 0 {
			view.WordsLeft = 0
		}
	}
	return view
}
