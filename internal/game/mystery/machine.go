// Package mystery implements the Murder-Mystery game. Its phase graph is
// derived from a scenario's flow: LOBBY, then one phase per flow step ending
// at ENDBOOK.
package mystery

import (
	"fmt"
	"math/rand"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/jason-s-yu/partyroom/internal/scenario"
)

const (
	PhaseLobby     game.Phase = "LOBBY"
	PhaseFinalVote game.Phase = "FINAL_VOTE"
	PhaseEndbook   game.Phase = "ENDBOOK"
)

const (
	ActionAssignRoles          = "assign_roles"
	ActionInvestigate          = "investigate"
	ActionResolveInvestigation = "resolve_investigation"
	ActionVote                 = "vote"
	ActionFinalizeVote         = "finalize_vote"
)

// Source resolves scenario ids. *scenario.Catalog implements it.
type Source interface {
	Get(id string) (*scenario.Scenario, error)
}

// Reveal is a card a player received.
type Reveal struct {
	Round    int           `json:"round"`
	TargetID string        `json:"targetId"`
	Card     scenario.Card `json:"card"`
}

// Request is a manual investigation waiting for the game master.
type Request struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`
	TargetID string `json:"targetId"`
	Round    int    `json:"round"`
}

// Machine is the Murder-Mystery state of one room.
type Machine struct {
	sc      *scenario.Scenario
	flow    []game.Phase
	steps   map[game.Phase]scenario.Step
	actions map[string]game.ActionSpec

	phase game.Phase

	roleOf       map[string]string
	displayNames map[string]string
	parts        []string
	cards        map[string][]Reveal
	seen         map[string]map[string]bool

	// investigated is tracked per round number.
	investigated map[int]map[string]bool
	pending      []Request
	appliedRules map[string]bool

	votes  map[string]string
	result *VoteResult

	log []game.LogEntry
	rng *rand.Rand
}

// New builds a machine over a validated scenario. A nil rng is replaced by a
// clock-seeded one.
func New(sc *scenario.Scenario, rng *rand.Rand) *Machine {
	if rng == nil {
		rng = game.NewRand()
	}
	m := &Machine{sc: sc, steps: map[game.Phase]scenario.Step{}, rng: rng}
	for _, step := range sc.Flow {
		p := game.Phase(step.PhaseName())
		m.flow = append(m.flow, p)
		m.steps[p] = step
	}
	m.actions = m.buildActions()
	m.clear()
	return m
}

// NewFactory resolves the room's scenario when the room is created. An
// unknown scenario is a configuration error.
func NewFactory(src Source) game.Factory {
	return func(cfg game.RoomConfig) (game.Machine, error) {
		sc, err := src.Get(cfg.ScenarioID)
		if err != nil {
			return nil, game.Errorf(game.ErrInvalidConfiguration, "scenario %q: %v", cfg.ScenarioID, err)
		}
		return New(sc, nil), nil
	}
}

func (m *Machine) clear() {
	m.phase = PhaseLobby
	m.roleOf = map[string]string{}
	m.displayNames = map[string]string{}
	for _, role := range m.sc.Roles {
		m.displayNames[role.ID] = role.DisplayName
	}
	m.parts = nil
	m.cards = map[string][]Reveal{}
	m.seen = map[string]map[string]bool{}
	m.investigated = map[int]map[string]bool{}
	m.pending = nil
	m.appliedRules = map[string]bool{}
	m.votes = map[string]string{}
	m.result = nil
	m.log = nil
}

func (m *Machine) buildActions() map[string]game.ActionSpec {
	var open, investigate []game.Phase
	for _, p := range m.flow {
		switch m.steps[p].Kind {
		case scenario.StepFinalVote, scenario.StepEndbook:
			continue
		case scenario.StepInvestigate:
			investigate = append(investigate, p)
		}
		open = append(open, p)
	}
	all := append([]game.Phase{PhaseLobby}, m.flow...)
	vote := []game.Phase{PhaseFinalVote}

	return map[string]game.ActionSpec{
		ActionAssignRoles:          {Phases: []game.Phase{PhaseLobby}, HostOnly: true},
		game.ActionAdvance:         {Phases: open, HostOnly: true},
		game.ActionStartRound:      {Phases: open, HostOnly: true},
		game.ActionForceEnd:        {Phases: open, HostOnly: true},
		ActionInvestigate:          {Phases: investigate, PlayerOnly: true},
		ActionResolveInvestigation: {Phases: investigate, GameMasterOnly: true},
		ActionVote:                 {Phases: vote, PlayerOnly: true},
		ActionFinalizeVote:         {Phases: vote, GameMasterOnly: true},
		game.ActionReset:           {Phases: all, HostOnly: true},
	}
}

func (m *Machine) Type() game.GameType                 { return game.GameMystery }
func (m *Machine) Phase() game.Phase                   { return m.phase }
func (m *Machine) Running() bool                       { return m.phase != PhaseLobby && m.phase != PhaseEndbook }
func (m *Machine) Actions() map[string]game.ActionSpec { return m.actions }

// Flow is the ordered list of phases after LOBBY.
func (m *Machine) Flow() []game.Phase { return append([]game.Phase(nil), m.flow...) }

// RoleOf returns the role dealt to a player.
func (m *Machine) RoleOf(playerID string) string { return m.roleOf[playerID] }

// Round is the round number of the current phase, zero outside rounds.
func (m *Machine) Round() int { return m.steps[m.phase].Round }

func (m *Machine) Handle(r *game.Room, actor game.Actor, action models.Action) (game.Outcome, error) {
	switch action.Type {
	case ActionAssignRoles:
		return m.assignRoles(r)
	case game.ActionAdvance:
		out, err := m.advance(r)
		if err != nil {
			return out, err
		}
		out.Timer = game.CancelTimer()
		return out, nil
	case ActionInvestigate:
		var p struct {
			TargetID string `json:"targetId"`
		}
		if err := action.Decode(&p); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "targetId is required")
		}
		return m.investigate(r, actor.ID, p.TargetID)
	case ActionResolveInvestigation:
		var p struct {
			RequestID string `json:"requestId"`
			CardID    string `json:"cardId"`
		}
		if err := action.Decode(&p); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "requestId and cardId are required")
		}
		return m.resolveRequest(r, p.RequestID, p.CardID)
	case ActionVote:
		var p struct {
			SuspectID string `json:"suspectId"`
		}
		if err := action.Decode(&p); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "suspectId is required")
		}
		return m.vote(r, actor.ID, p.SuspectID)
	case ActionFinalizeVote:
		return m.finalize(r), nil
	}
	return game.Outcome{}, game.ErrUnknownAction
}

// assignRoles deals one role per player. The culprit is always dealt.
func (m *Machine) assignRoles(r *game.Room) (game.Outcome, error) {
	ids := r.PlayerIDsUnsafe()
	if len(ids) == 0 || len(ids) > len(m.sc.Roles) {
		return game.Outcome{}, game.Errorf(game.ErrInvalidConfiguration, "%s needs between 1 and %d players", m.sc.Title, len(m.sc.Roles))
	}

	var others []string
	for _, role := range m.sc.Roles {
		if role.ID != m.sc.CulpritRole {
			others = append(others, role.ID)
		}
	}
	m.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	deck := append([]string{m.sc.CulpritRole}, others[:len(ids)-1]...)
	m.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	events := []game.Event{}
	for i, id := range ids {
		role, _ := m.sc.Role(deck[i])
		m.roleOf[id] = role.ID
		entry := game.NewLogEntry(0, "role", fmt.Sprintf("You play %s. %s", role.DisplayName, role.Briefing), id, map[string]interface{}{"role": role.ID})
		m.log = append(m.log, entry)
		events = append(events, m.logEvent(r, entry))
	}

	m.phase = m.flow[0]
	events = append(events, game.PhaseChangeEvent(PhaseLobby, m.phase))
	return game.Outcome{Reply: game.Reply{"phase": m.phase}, Events: events}, nil
}

// advance moves to the next phase of the flow. Pending manual requests never
// cross a phase boundary: they are resolved with a random card first.
func (m *Machine) advance(r *game.Room) (game.Outcome, error) {
	next := -1
	for i, p := range m.flow {
		if p == m.phase && i+1 < len(m.flow) {
			next = i + 1
		}
	}
	if next < 0 {
		return game.Outcome{}, fmt.Errorf("mystery: no phase after %s", m.phase)
	}

	events := m.flushPending(r)
	from := m.phase
	m.phase = m.flow[next]
	if m.phase == PhaseFinalVote {
		m.votes = map[string]string{}
	}
	events = append(events, game.PhaseChangeEvent(from, m.phase))
	return game.Outcome{Reply: game.Reply{"phase": m.phase}, Events: events}, nil
}

// StartRound runs a countdown for the current phase; expiry advances.
func (m *Machine) StartRound(r *game.Room, seconds int) (game.Outcome, error) {
	return game.Outcome{Reply: game.Reply{"phase": m.phase, "seconds": seconds}, Timer: game.StartTimer(seconds)}, nil
}

func (m *Machine) ForceEnd(r *game.Room) (game.Outcome, error) {
	return m.advance(r)
}

func (m *Machine) Reset(r *game.Room) game.Outcome {
	from := m.phase
	m.clear()
	return game.Outcome{Events: []game.Event{game.PhaseChangeEvent(from, PhaseLobby)}}
}
