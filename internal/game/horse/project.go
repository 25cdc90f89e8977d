package horse

import "github.com/jason-s-yu/partyroom/internal/game"

// View is the horse part of a snapshot.
type View struct {
	Round       int            `json:"round"`
	TotalRounds int            `json:"totalRounds"`
	Horses      int            `json:"horses"`
	Chips       map[string]int `json:"chips"`
	Standings   []string       `json:"standings"`
	Pot         int            `json:"pot"`
	Bettors     int            `json:"bettors"`
	MyBet       *Bet           `json:"myBet,omitempty"`

	// Bets are visible to the host at all times and to everyone once
	// betting has closed.
	Bets map[string]Bet `json:"bets,omitempty"`

	// Positions are the distances at the last announced second of the race.
	Positions []int `json:"positions,omitempty"`

	// Race is the full pre-computed run, host only.
	Race *Race `json:"race,omitempty"`

	LastResult *RoundResult    `json:"lastResult,omitempty"`
	Log        []game.LogEntry `json:"log"`
}

func (m *Machine) Project(r *game.Room, v game.Viewer) interface{} {
	view := View{
		Round:       m.round,
		TotalRounds: r.Config.TotalRounds,
		Horses:      m.horses,
		Chips:       make(map[string]int, len(m.chips)),
		Standings:   standings(r, m.chips),
		Bettors:     len(m.bets),
		LastResult:  m.last,
		Log:         game.FilterLog(m.log, v),
	}
	for id, c := range m.chips {
		view.Chips[id] = c
	}
	for _, b := range m.bets {
		view.Pot += b.Amount
	}
	if b, ok := m.bets[v.ID]; ok {
		bet := b
		view.MyBet = &bet
	}
	if v.IsHost || m.phase == PhaseRacing || m.phase == PhaseResult || m.phase == PhaseEnded {
		view.Bets = make(map[string]Bet, len(m.bets))
		for id, b := range m.bets {
			view.Bets[id] = b
		}
	}
	if m.race != nil && m.phase == PhaseRacing {
		view.Positions = m.race.Positions(m.frame)
		if v.IsHost {
			view.Race = m.race
		}
	}
	return view
}
