// Package horse implements the betting and racing game: players receive
// chips, bet on horses during a timed betting window and are paid out after
// a short animated race.
package horse

import (
	"fmt"
	"maps"
	"math/rand"
	"sort"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
)

const (
	PhaseLobby   game.Phase = "lobby"
	PhaseReady   game.Phase = "ready"
	PhaseBetting game.Phase = "betting"
	PhaseRacing  game.Phase = "racing"
	PhaseResult  game.Phase = "result"
	PhaseEnded   game.Phase = "ended"
)

const (
	ActionDistribute = "distribute"
	ActionPlaceBet   = "place_bet"
)

// EventRaceProgress carries one second of the race.
const EventRaceProgress game.EventType = "race_progress"

var allPhases = []game.Phase{PhaseLobby, PhaseReady, PhaseBetting, PhaseRacing, PhaseResult, PhaseEnded}

var actions = map[string]game.ActionSpec{
	ActionDistribute:      {Phases: []game.Phase{PhaseLobby}, HostOnly: true},
	game.ActionStartRound: {Phases: []game.Phase{PhaseReady, PhaseResult}, HostOnly: true},
	ActionPlaceBet:        {Phases: []game.Phase{PhaseBetting}, PlayerOnly: true},
	game.ActionForceEnd:   {Phases: []game.Phase{PhaseBetting, PhaseRacing}, HostOnly: true},
	game.ActionReset:      {Phases: allPhases, HostOnly: true},
}

// Bet is a player's stake for the current round.
type Bet struct {
	HorseID int `json:"horseId"`
	Amount  int `json:"amount"`
}

// RoundResult is announced when a race is settled.
type RoundResult struct {
	Round     int            `json:"round"`
	Ranking   []int          `json:"ranking"`
	Distances []int          `json:"distances"`
	Winner    int            `json:"winner"`
	Pot       int            `json:"pot"`
	Payouts   map[string]int `json:"payouts"`
	Bets      map[string]Bet `json:"bets"`
	PotLost   bool           `json:"potLost"`
}

// RaceProgress is the payload of EventRaceProgress: every horse's distance
// after Second seconds.
type RaceProgress struct {
	Round     int   `json:"round"`
	Second    int   `json:"second"`
	Positions []int `json:"positions"`
}

// Machine is the horse game state of one room.
type Machine struct {
	phase  game.Phase
	round  int
	horses int
	chips  map[string]int
	bets   map[string]Bet
	race   *Race
	// frame is the last race second announced to clients.
	frame int
	last  *RoundResult
	log   []game.LogEntry
	rng   *rand.Rand
}

var _ game.Animator = (*Machine)(nil)

// New builds a machine. A nil rng is replaced by a clock-seeded one.
func New(cfg game.RoomConfig, rng *rand.Rand) *Machine {
	if rng == nil {
		rng = game.NewRand()
	}
	return &Machine{
		phase:  PhaseLobby,
		horses: cfg.HorseCount,
		chips:  map[string]int{},
		bets:   map[string]Bet{},
		rng:    rng,
	}
}

// Factory registers the game with an engine.
func Factory(cfg game.RoomConfig) (game.Machine, error) {
	if cfg.HorseCount < 2 {
		return nil, fmt.Errorf("a race needs at least two horses")
	}
	return New(cfg, nil), nil
}

func (m *Machine) Type() game.GameType                 { return game.GameHorse }
func (m *Machine) Phase() game.Phase                   { return m.phase }
func (m *Machine) Running() bool                       { return m.phase != PhaseLobby && m.phase != PhaseEnded }
func (m *Machine) Actions() map[string]game.ActionSpec { return actions }

// Chips returns a player's balance.
func (m *Machine) Chips(id string) int { return m.chips[id] }

func (m *Machine) Handle(r *game.Room, actor game.Actor, action models.Action) (game.Outcome, error) {
	switch action.Type {
	case ActionDistribute:
		return m.distribute(r)
	case ActionPlaceBet:
		var bet Bet
		if err := action.Decode(&bet); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "bet needs horseId and amount")
		}
		return m.placeBet(r, actor, bet)
	}
	return game.Outcome{}, game.ErrUnknownAction
}

func (m *Machine) distribute(r *game.Room) (game.Outcome, error) {
	if len(r.Players) == 0 {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "nobody is seated")
	}
	if r.Config.HorseCount >= 2 {
		m.horses = r.Config.HorseCount
	}
	m.chips = make(map[string]int, len(r.Players))
	for _, p := range r.Players {
		m.chips[p.ID] = r.Config.StartChips
	}
	m.round = 0
	from := m.phase
	m.phase = PhaseReady
	entry := game.NewLogEntry(0, "distribute", fmt.Sprintf("Everyone receives %d chips", r.Config.StartChips), "", nil)
	m.log = append(m.log, entry)
	return game.Outcome{
		Reply:  game.Reply{"chips": r.Config.StartChips},
		Events: []game.Event{game.PhaseChangeEvent(from, m.phase), game.LogEvent(entry)},
	}, nil
}

func (m *Machine) StartRound(r *game.Room, seconds int) (game.Outcome, error) {
	m.round++
	m.bets = map[string]Bet{}
	m.race = nil
	from := m.phase
	m.phase = PhaseBetting
	return game.Outcome{
		Reply:  game.Reply{"round": m.round},
		Events: []game.Event{game.PhaseChangeEvent(from, m.phase)},
		Timer:  game.StartTimer(seconds),
	}, nil
}

func (m *Machine) placeBet(r *game.Room, actor game.Actor, bet Bet) (game.Outcome, error) {
	if bet.HorseID < 1 || bet.HorseID > m.horses {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "horse %d is not running", bet.HorseID)
	}
	if bet.Amount < 1 {
		return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "a bet must be at least one chip")
	}
	prev, hadBet := m.bets[actor.ID]
	available := m.chips[actor.ID] + prev.Amount
	if bet.Amount > available {
		return game.Outcome{}, game.Errorf(game.ErrInsufficientResource, "you only have %d chips", available)
	}

	m.chips[actor.ID] = available - bet.Amount
	m.bets[actor.ID] = bet
	text := fmt.Sprintf("You bet %d on horse %d", bet.Amount, bet.HorseID)
	if hadBet {
		text = fmt.Sprintf("You changed your bet to %d on horse %d", bet.Amount, bet.HorseID)
	}
	entry := game.NewLogEntry(m.round, "bet", text, actor.ID, map[string]interface{}{"horseId": bet.HorseID, "amount": bet.Amount})
	m.log = append(m.log, entry)
	return game.Outcome{
		Reply:  game.Reply{"chips": m.chips[actor.ID]},
		Events: []game.Event{game.LogEvent(entry)},
	}, nil
}

// ForceEnd closes betting and starts the race, or settles a running race.
func (m *Machine) ForceEnd(r *game.Room) (game.Outcome, error) {
	switch m.phase {
	case PhaseBetting:
		m.race = newRace(m.rng, m.horses)
		m.frame = 0
		m.phase = PhaseRacing
		return game.Outcome{
			Events: []game.Event{game.PhaseChangeEvent(PhaseBetting, PhaseRacing)},
			Timer:  game.StartTimer(RaceSeconds),
		}, nil
	case PhaseRacing:
		return m.settleRound(r)
	}
	return game.Outcome{}, fmt.Errorf("horse: force end in phase %s", m.phase)
}

func (m *Machine) settleRound(r *game.Room) (game.Outcome, error) {
	if m.race == nil {
		return game.Outcome{}, fmt.Errorf("horse: racing without a race")
	}
	ranking := m.race.Ranking()
	winner := ranking[0]

	stakes := make([]stake, 0, len(m.bets))
	pot := 0
	for _, p := range r.Players {
		b, ok := m.bets[p.ID]
		if !ok {
			continue
		}
		stakes = append(stakes, stake{PlayerID: p.ID, Seat: p.Seat, HorseID: b.HorseID, Amount: b.Amount})
		pot += b.Amount
	}
	payouts := settle(pot, stakes, winner)
	for id, amount := range payouts {
		m.chips[id] += amount
	}

	// A race cut short by the host still shows every remaining second.
	frames := m.advanceFrames(RaceSeconds)

	result := &RoundResult{
		Round:     m.round,
		Ranking:   ranking,
		Distances: m.race.Positions(RaceSeconds),
		Winner:    winner,
		Pot:       pot,
		Payouts:   payouts,
		Bets:      maps.Clone(m.bets),
		PotLost:   payouts == nil && pot > 0,
	}
	if result.Payouts == nil {
		result.Payouts = map[string]int{}
	}
	m.last = result

	text := fmt.Sprintf("Horse %d wins round %d", winner, m.round)
	if result.PotLost {
		text += fmt.Sprintf("; nobody backed it and the pot of %d is lost", pot)
	}
	entry := game.NewLogEntry(m.round, "race", text, "", nil)
	m.log = append(m.log, entry)

	out := game.Outcome{Events: append(frames,
		game.RoomEvent(game.EventRoundResult, result),
		game.LogEvent(entry),
	)}
	if m.round >= r.Config.TotalRounds {
		m.phase = PhaseEnded
		out.Events = append(out.Events, game.PhaseChangeEvent(PhaseRacing, PhaseEnded))
		out.GameOver = &game.GameOver{Winners: r.NamesUnsafe(game.TopScorers(r.PlayerIDsUnsafe(), m.chips))}
		return out, nil
	}
	m.phase = PhaseResult
	out.Events = append(out.Events, game.PhaseChangeEvent(PhaseRacing, PhaseResult))
	return out, nil
}

// Tick moves a running race on by one second.
func (m *Machine) Tick(r *game.Room) []game.Event {
	if m.phase != PhaseRacing || m.race == nil {
		return nil
	}
	return m.advanceFrames(m.frame + 1)
}

// advanceFrames announces every race second after the current frame up to
// and including to.
func (m *Machine) advanceFrames(to int) []game.Event {
	var events []game.Event
	for m.frame < to && m.frame < RaceSeconds {
		m.frame++
		events = append(events, game.RoomEvent(EventRaceProgress, RaceProgress{
			Round:     m.round,
			Second:    m.frame,
			Positions: m.race.Positions(m.frame),
		}))
	}
	return events
}

func (m *Machine) Reset(r *game.Room) game.Outcome {
	from := m.phase
	m.phase = PhaseLobby
	m.round = 0
	m.chips = map[string]int{}
	m.bets = map[string]Bet{}
	m.race = nil
	m.frame = 0
	m.last = nil
	m.log = nil
	return game.Outcome{Events: []game.Event{game.PhaseChangeEvent(from, PhaseLobby)}}
}

// standings lists player ids by chips, descending, ties by seat.
func standings(r *game.Room, chips map[string]int) []string {
	players := append([]*models.Player(nil), r.Players...)
	sort.SliceStable(players, func(i, j int) bool {
		if chips[players[i].ID] != chips[players[j].ID] {
			return chips[players[i].ID] > chips[players[j].ID]
		}
		return players[i].Seat < players[j].Seat
	})
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}
