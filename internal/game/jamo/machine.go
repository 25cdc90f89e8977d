// Package jamo implements Jamo-Word: every round the 24 basic Hangul letters
// are shuffled onto a numbered board and players score by spelling dictionary
// words from tile numbers.
package jamo

import (
	"context"
	"fmt"
	"maps"
	"math/rand"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
)

const (
	PhaseLobby    game.Phase = "lobby"
	PhasePlaying  game.Phase = "playing"
	PhaseRoundEnd game.Phase = "round_end"
	PhaseEnded    game.Phase = "ended"
)

const ActionSubmitWord = "submit_word"

var actions = map[string]game.ActionSpec{
	game.ActionStartRound: {Phases: []game.Phase{PhaseLobby, PhaseRoundEnd}, HostOnly: true},
	ActionSubmitWord:      {Phases: []game.Phase{PhasePlaying}, PlayerOnly: true},
	game.ActionForceEnd:   {Phases: []game.Phase{PhasePlaying}, HostOnly: true},
	game.ActionReset: {
		Phases:   []game.Phase{PhaseLobby, PhasePlaying, PhaseRoundEnd, PhaseEnded},
		HostOnly: true,
	},
}

// Dictionary answers whether a composed word exists.
type Dictionary interface {
	Lookup(ctx context.Context, word string) (bool, error)
}

// Word is one accepted submission.
type Word struct {
	PlayerID string `json:"playerId"`
	Word     string `json:"word"`
	Numbers  []int  `json:"numbers"`
	Points   int    `json:"points"`
}

// RoundSummary is announced when a round closes. It owns its data, so it can
// be encoded after the room lock is released.
type RoundSummary struct {
	Round  int            `json:"round"`
	Words  []Word         `json:"words"`
	Scores map[string]int `json:"scores"`
}

// Machine is the Jamo-Word state of one room.
type Machine struct {
	phase  game.Phase
	round  int
	board  Board
	scores map[string]int

	// deal counts boards dealt over the machine's life; reset keeps it.
	deal int

	// used is room-wide for the current round, keyed by word.
	used     map[string]Word
	accepted map[string]int
	words    []Word

	dict Dictionary
	log  []game.LogEntry
	rng  *rand.Rand
}

// New builds a machine. A nil rng is replaced by a clock-seeded one.
func New(dict Dictionary, rng *rand.Rand) *Machine {
	if rng == nil {
		rng = game.NewRand()
	}
	m := &Machine{dict: dict, rng: rng}
	m.clear()
	return m
}

// NewFactory binds a dictionary to every room the engine creates.
func NewFactory(dict Dictionary) game.Factory {
	return func(game.RoomConfig) (game.Machine, error) {
		if dict == nil {
			return nil, fmt.Errorf("jamo: no dictionary configured")
		}
		return New(dict, nil), nil
	}
}

func (m *Machine) clear() {
	m.phase = PhaseLobby
	m.round = 0
	m.board = Board{}
	m.scores = map[string]int{}
	m.used = map[string]Word{}
	m.accepted = map[string]int{}
	m.words = nil
	m.log = nil
}

func (m *Machine) Type() game.GameType                 { return game.GameJamo }
func (m *Machine) Phase() game.Phase                   { return m.phase }
func (m *Machine) Running() bool                       { return m.phase != PhaseLobby && m.phase != PhaseEnded }
func (m *Machine) Actions() map[string]game.ActionSpec { return actions }

// Score is a player's running total.
func (m *Machine) Score(id string) int { return m.scores[id] }

// StartRound deals a fresh board and clears the per-round word state.
func (m *Machine) StartRound(r *game.Room, seconds int) (game.Outcome, error) {
	from := m.phase
	if m.round == 0 {
		for _, id := range r.PlayerIDsUnsafe() {
			m.scores[id] = 0
		}
	}
	m.round++
	m.deal++
	m.board = NewBoard(m.rng)
	m.used = map[string]Word{}
	m.accepted = map[string]int{}
	m.words = nil
	m.phase = PhasePlaying

	entry := game.NewLogEntry(m.round, "round", fmt.Sprintf("Round %d of %d", m.round, r.Config.TotalRounds), "", nil)
	m.log = append(m.log, entry)
	return game.Outcome{
		Reply:  game.Reply{"round": m.round},
		Events: []game.Event{game.PhaseChangeEvent(from, PhasePlaying), game.LogEvent(entry)},
		Timer:  game.StartTimer(seconds),
	}, nil
}

func (m *Machine) Handle(r *game.Room, actor game.Actor, action models.Action) (game.Outcome, error) {
	if action.Type != ActionSubmitWord {
		return game.Outcome{}, game.ErrUnknownAction
	}
	var p struct {
		Numbers []int `json:"numbers"`
	}
	if err := action.Decode(&p); err != nil {
		return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "numbers must be a list of positions")
	}
	word, err := m.checkSubmission(r, actor.ID, p.Numbers)
	if err != nil {
		return game.Outcome{}, err
	}

	deal := m.deal
	numbers := append([]int(nil), p.Numbers...)
	dict := m.dict
	return game.Outcome{Async: &game.AsyncStep{
		Run: func(ctx context.Context) interface{} {
			found, err := dict.Lookup(ctx, word)
			return lookupResult{found: found && err == nil, err: err}
		},
		Apply: func(r *game.Room, actor game.Actor, result interface{}) (game.Outcome, error) {
			if m.phase != PhasePlaying || m.deal != deal {
				return game.Outcome{}, game.Errorf(game.ErrWrongPhase, "the round ended before %q was checked", word)
			}
			if actor.Player == nil {
				return game.Outcome{}, game.ErrNotAParticipant
			}
			current, err := m.checkSubmission(r, actor.ID, numbers)
			if err != nil {
				return game.Outcome{}, err
			}
			// The lookup answered for word; never score anything else.
			if current != word {
				return game.Outcome{}, game.Errorf(game.ErrWrongPhase, "the board changed before %q was checked", word)
			}
			return m.settle(r, actor.ID, current, numbers, result.(lookupResult)), nil
		},
	}}, nil
}

type lookupResult struct {
	found bool
	err   error
}

// checkSubmission validates a submission without mutating anything and
// returns the composed word. The word cap is read from the room so settings
// changed between games apply.
func (m *Machine) checkSubmission(r *game.Room, playerID string, numbers []int) (string, error) {
	if limit := r.Config.WordCap; limit > 0 && m.accepted[playerID] >= limit {
		return "", game.Errorf(game.ErrNoUsesRemaining, "you already found %d words this round", limit)
	}
	tiles, err := m.board.Tiles(numbers)
	if err != nil {
		return "", err
	}
	word, err := Compose(tiles)
	if err != nil {
		return "", game.Errorf(game.ErrInvalidPayload, "%v", err)
	}
	if _, taken := m.used[word]; taken {
		return "", game.Errorf(game.ErrInvalidTarget, "%q was already played this round", word)
	}
	return word, nil
}

func (m *Machine) settle(r *game.Room, playerID, word string, numbers []int, res lookupResult) game.Outcome {
	if !res.found {
		text := fmt.Sprintf("%q is not in the dictionary", word)
		if res.err != nil {
			text = fmt.Sprintf("%q could not be checked", word)
		}
		entry := game.NewLogEntry(m.round, "word_rejected", text, playerID, map[string]interface{}{"word": word})
		m.log = append(m.log, entry)
		return game.Outcome{
			Reply:  game.Reply{"word": word, "accepted": false},
			Events: []game.Event{game.LogEvent(entry)},
			Quiet:  true,
		}
	}

	points := 0
	for _, n := range numbers {
		points += n
	}
	w := Word{PlayerID: playerID, Word: word, Numbers: numbers, Points: points}
	m.used[word] = w
	m.words = append(m.words, w)
	m.accepted[playerID]++
	m.scores[playerID] += points

	entry := game.NewLogEntry(m.round, "word_accepted",
		fmt.Sprintf("%s found %q for %d points", r.NameOfUnsafe(playerID), word, points), "",
		map[string]interface{}{"word": word, "points": points, "playerId": playerID})
	m.log = append(m.log, entry)
	return game.Outcome{
		Reply:  game.Reply{"word": word, "accepted": true, "points": points, "score": m.scores[playerID]},
		Events: []game.Event{game.LogEvent(entry)},
	}
}

// ForceEnd closes the current round; after the last round the game ends.
func (m *Machine) ForceEnd(r *game.Room) (game.Outcome, error) {
	if m.phase != PhasePlaying {
		return game.Outcome{}, fmt.Errorf("jamo: force end in phase %s", m.phase)
	}
	summary := RoundSummary{
		Round:  m.round,
		Words:  append([]Word{}, m.words...),
		Scores: maps.Clone(m.scores),
	}
	events := []game.Event{game.RoomEvent(game.EventRoundResult, summary)}

	if m.round >= r.Config.TotalRounds {
		m.phase = PhaseEnded
		ids := r.PlayerIDsUnsafe()
		events = append(events, game.PhaseChangeEvent(PhasePlaying, PhaseEnded))
		return game.Outcome{
			Events:   events,
			GameOver: &game.GameOver{Winners: r.NamesUnsafe(game.TopScorers(ids, m.scores))},
		}, nil
	}
	m.phase = PhaseRoundEnd
	events = append(events, game.PhaseChangeEvent(PhasePlaying, PhaseRoundEnd))
	return game.Outcome{Events: events}, nil
}

func (m *Machine) Reset(r *game.Room) game.Outcome {
	from := m.phase
	m.clear()
	return game.Outcome{Events: []game.Event{game.PhaseChangeEvent(from, PhaseLobby)}}
}
