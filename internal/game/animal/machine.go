// Package animal implements Animal-Survival, a hidden-role game: every round
// players pick a feeding ground, carnivores hunt co-located prey and crowded
// grounds starve their weakest occupants.
package animal

import (
	"fmt"
	"math/rand"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
)

const (
	PhaseLobby   game.Phase = "lobby"
	PhaseReady   game.Phase = "ready"
	PhaseStart   game.Phase = "start"
	PhaseRunning game.Phase = "running"
	PhaseResolve game.Phase = "resolve"
	PhaseResult  game.Phase = "result"
	PhaseEnded   game.Phase = "ended"
)

const (
	ActionAssignRoles = "assign_roles"
	ActionLockPlace   = "lock_place"
	ActionEat         = "eat"
	ActionUseAbility  = "use_ability"
	ActionNextRound   = "next_round"
)

// StartSeconds is the fixed countdown between locking places and the hunt.
const StartSeconds = 3

var actions = map[string]game.ActionSpec{
	ActionAssignRoles:     {Phases: []game.Phase{PhaseLobby}, HostOnly: true},
	ActionLockPlace:       {Phases: []game.Phase{PhaseReady}, PlayerOnly: true},
	game.ActionStartRound: {Phases: []game.Phase{PhaseReady}, HostOnly: true},
	ActionEat:             {Phases: []game.Phase{PhaseRunning}, PlayerOnly: true},
	ActionUseAbility:      {Phases: []game.Phase{PhaseReady, PhaseRunning}, PlayerOnly: true},
	game.ActionForceEnd:   {Phases: []game.Phase{PhaseStart, PhaseRunning}, HostOnly: true},
	ActionNextRound:       {Phases: []game.Phase{PhaseResult}, HostOnly: true},
	game.ActionReset: {
		Phases:   []game.Phase{PhaseLobby, PhaseReady, PhaseStart, PhaseRunning, PhaseResult, PhaseEnded},
		HostOnly: true,
	},
}

// BuffKind is a single-round effect.
type BuffKind string

const (
	BuffEatShield    BuffKind = "eat_shield"
	BuffStarveShield BuffKind = "starve_shield"
	BuffPierce       BuffKind = "pierce"
)

// Buff holds charges that expire at the end of the round's resolution.
type Buff struct {
	Kind    BuffKind `json:"kind"`
	Charges int      `json:"charges"`
	Round   int      `json:"round"`
}

// Risk is the crowding indicator of a place.
type Risk string

const (
	RiskSafe    Risk = "safe"
	RiskCrowded Risk = "crowded"
	RiskUnknown Risk = "unknown"
)

// Intel is private knowledge gained through an ability.
type Intel struct {
	Round    int       `json:"round"`
	Source   AbilityID `json:"source"`
	PlayerID string    `json:"playerId,omitempty"`
	Role     RoleID    `json:"role,omitempty"`
	Species  Species   `json:"species,omitempty"`
	Place    PlaceID   `json:"place,omitempty"`
	Count    *int      `json:"count,omitempty"`
	Risk     Risk      `json:"risk,omitempty"`
}

// PlayerState is the secret and public state of one player.
type PlayerState struct {
	ID        string            `json:"id"`
	Role      RoleID            `json:"role"`
	Species   Species           `json:"species"`
	Place     PlaceID           `json:"place,omitempty"`
	Locked    bool              `json:"locked"`
	Alive     bool              `json:"alive"`
	Score     int               `json:"score"`
	Intent    string            `json:"intent,omitempty"`
	Buffs     []Buff            `json:"buffs"`
	Cooldowns map[AbilityID]int `json:"cooldowns"`
	Uses      map[AbilityID]int `json:"uses"`
	Intel     []Intel           `json:"intel"`
	DiedRound int               `json:"diedRound,omitempty"`
	Cause     string            `json:"cause,omitempty"`
}

func (p *PlayerState) buff(kind BuffKind) *Buff {
	for i := range p.Buffs {
		if p.Buffs[i].Kind == kind && p.Buffs[i].Charges > 0 {
			return &p.Buffs[i]
		}
	}
	return nil
}

func (p *PlayerState) grant(kind BuffKind, round int) {
	if b := p.buff(kind); b != nil {
		return
	}
	p.Buffs = append(p.Buffs, Buff{Kind: kind, Charges: 1, Round: round})
}

// RoundResult is announced after each resolution.
type RoundResult struct {
	Round      int               `json:"round"`
	EatenIDs   []string          `json:"eatenIds"`
	StarvedIDs []string          `json:"starvedIds"`
	Survivors  int               `json:"survivors"`
	Kills      map[string]string `json:"kills,omitempty"`
	Shielded   []string          `json:"shielded,omitempty"`
}

// Machine is the Animal-Survival state of one room.
type Machine struct {
	phase          game.Phase
	round          int
	players        map[string]*PlayerState
	order          []string
	capacity       map[PlaceID]int
	modifiers      map[PlaceID]int
	pendingSeconds int
	last           *RoundResult
	log            []game.LogEntry
	rng            *rand.Rand
}

// New builds a machine. A nil rng is replaced by a clock-seeded one.
func New(rng *rand.Rand) *Machine {
	if rng == nil {
		rng = game.NewRand()
	}
	return &Machine{
		phase:     PhaseLobby,
		players:   map[string]*PlayerState{},
		capacity:  Capacities(0),
		modifiers: map[PlaceID]int{},
		rng:       rng,
	}
}

// Factory registers the game with an engine.
func Factory(game.RoomConfig) (game.Machine, error) { return New(nil), nil }

func (m *Machine) Type() game.GameType                 { return game.GameAnimal }
func (m *Machine) Phase() game.Phase                   { return m.phase }
func (m *Machine) Running() bool                       { return m.phase != PhaseLobby && m.phase != PhaseEnded }
func (m *Machine) Actions() map[string]game.ActionSpec { return actions }

// Player returns the state of one player, or nil.
func (m *Machine) Player(id string) *PlayerState { return m.players[id] }

// Round is the current round number, starting at 1.
func (m *Machine) Round() int { return m.round }

// LastResult is the most recent resolution.
func (m *Machine) LastResult() *RoundResult { return m.last }

func (m *Machine) Handle(r *game.Room, actor game.Actor, action models.Action) (game.Outcome, error) {
	switch action.Type {
	case ActionAssignRoles:
		return m.assignRoles(r)
	case ActionNextRound:
		return m.nextRound(r)
	}

	me := m.players[actor.ID]
	if me == nil {
		return game.Outcome{}, game.Errorf(game.ErrNotAParticipant, "you joined after roles were assigned")
	}
	if !me.Alive {
		return game.Outcome{}, game.Errorf(game.ErrNotAParticipant, "you have been eliminated")
	}

	switch action.Type {
	case ActionLockPlace:
		var p struct {
			PlaceID PlaceID `json:"placeId"`
		}
		if err := action.Decode(&p); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "placeId is required")
		}
		return m.lockPlace(me, p.PlaceID)
	case ActionEat:
		var p struct {
			TargetID string `json:"targetId"`
		}
		if err := action.Decode(&p); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "targetId is required")
		}
		return m.eat(r, me, p.TargetID)
	case ActionUseAbility:
		var p abilityRequest
		if err := action.Decode(&p); err != nil {
			return game.Outcome{}, game.Errorf(game.ErrInvalidPayload, "abilityId is required")
		}
		return m.useAbility(r, me, p)
	}
	return game.Outcome{}, game.ErrUnknownAction
}

func (m *Machine) assignRoles(r *game.Room) (game.Outcome, error) {
	n := len(r.Players)
	if n < 2 {
		return game.Outcome{}, game.Errorf(game.ErrInvalidConfiguration, "at least two players are needed")
	}
	carn, omni, herb := speciesCounts(n)
	roles := drawRoles(m.rng, speciesPool(Carnivore), carn)
	roles = append(roles, drawRoles(m.rng, speciesPool(Omnivore), omni)...)
	roles = append(roles, drawRoles(m.rng, speciesPool(Herbivore), herb)...)
	m.rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	m.players = make(map[string]*PlayerState, n)
	m.order = r.PlayerIDsUnsafe()
	events := []game.Event{}
	for i, id := range m.order {
		role := roleTable[roles[i]]
		m.players[id] = &PlayerState{
			ID:        id,
			Role:      role.ID,
			Species:   role.Species,
			Alive:     true,
			Cooldowns: map[AbilityID]int{},
			Uses:      map[AbilityID]int{},
		}
		entry := game.NewLogEntry(1, "role", fmt.Sprintf("You are a %s (%s)", role.Name, role.Species), id, map[string]interface{}{"role": role.ID})
		m.log = append(m.log, entry)
		events = append(events, game.LogEvent(entry))
	}
	m.round = 1
	m.last = nil
	m.beginReady()
	events = append(events, game.PhaseChangeEvent(PhaseLobby, PhaseReady))
	return game.Outcome{
		Reply:  game.Reply{"carnivores": carn, "omnivores": omni, "herbivores": herb},
		Events: events,
	}, nil
}

// beginReady opens place selection for the current round.
func (m *Machine) beginReady() {
	m.phase = PhaseReady
	m.capacity = Capacities(m.aliveCount(Herbivore))
	m.modifiers = map[PlaceID]int{}
	for _, p := range m.players {
		p.Locked = false
		p.Intent = ""
	}
}

func (m *Machine) lockPlace(me *PlayerState, place PlaceID) (game.Outcome, error) {
	if !validPlace(place) {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "unknown place %q", place)
	}
	if me.Locked {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "your place is already locked")
	}
	me.Place = place
	me.Locked = true
	return game.Outcome{Reply: game.Reply{"placeId": place}}, nil
}

// StartRound places everyone who has not locked in and runs the fixed start
// countdown. The hunt itself gets the requested duration.
func (m *Machine) StartRound(r *game.Room, seconds int) (game.Outcome, error) {
	for _, id := range m.order {
		p := m.players[id]
		if !p.Alive || p.Locked {
			continue
		}
		p.Place = Places[m.rng.Intn(len(Places))]
		p.Locked = true
		entry := game.NewLogEntry(m.round, "auto_place", fmt.Sprintf("You were placed at %s", p.Place), id, nil)
		m.log = append(m.log, entry)
	}
	m.pendingSeconds = seconds
	m.phase = PhaseStart
	return game.Outcome{
		Events: []game.Event{game.PhaseChangeEvent(PhaseReady, PhaseStart)},
		Timer:  game.StartTimer(StartSeconds),
	}, nil
}

func (m *Machine) eat(r *game.Room, me *PlayerState, targetID string) (game.Outcome, error) {
	if me.Species != Carnivore {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "only carnivores hunt")
	}
	target := m.players[targetID]
	if target == nil || !target.Alive || target.ID == me.ID {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "no such prey")
	}
	// One message for both cases, so a refusal never hints at a species or a place.
	if target.Species == Carnivore || target.Place != me.Place {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "that prey is out of reach")
	}
	me.Intent = target.ID
	entry := game.NewLogEntry(m.round, "hunt", fmt.Sprintf("You stalk %s", r.NameOfUnsafe(target.ID)), me.ID, nil)
	m.log = append(m.log, entry)
	return game.Outcome{Reply: game.Reply{"targetId": target.ID}, Events: []game.Event{game.LogEvent(entry)}}, nil
}

type abilityRequest struct {
	AbilityID AbilityID `json:"abilityId"`
	TargetID  string    `json:"targetId,omitempty"`
	PlaceID   PlaceID   `json:"placeId,omitempty"`
}

func (m *Machine) useAbility(r *game.Room, me *PlayerState, req abilityRequest) (game.Outcome, error) {
	ab, ok := abilityTable[req.AbilityID]
	if !ok || !hasAbility(me.Role, req.AbilityID) {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "you do not have that ability")
	}
	if !ab.allows(m.phase) {
		return game.Outcome{}, game.Errorf(game.ErrWrongPhase, "%s cannot be used during %s", ab.Name, m.phase)
	}
	if next := me.Cooldowns[ab.ID]; next > m.round {
		return game.Outcome{}, game.Errorf(game.ErrCooldownActive, "%s is ready again in round %d", ab.Name, next)
	}
	if ab.MaxUses > 0 && me.Uses[ab.ID] >= ab.MaxUses {
		return game.Outcome{}, game.ErrNoUsesRemaining
	}

	var target *PlayerState
	switch ab.Target {
	case TargetPlayer:
		target = m.players[req.TargetID]
		if target == nil || target.ID == me.ID || !target.Alive {
			return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "no such player")
		}
	case TargetPlace:
		if !validPlace(req.PlaceID) {
			return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "unknown place %q", req.PlaceID)
		}
	}

	var text string
	var intel *Intel
	switch ab.ID {
	case AbilityPierce:
		me.grant(BuffPierce, m.round)
		text = "Your next bite ignores shields"
	case AbilityBurrow, AbilityShell:
		me.grant(BuffEatShield, m.round)
		text = "You are protected from one predator this round"
	case AbilityHibernate, AbilityGraze:
		me.grant(BuffStarveShield, m.round)
		text = "You will not starve this round"
	case AbilityRaid:
		m.modifiers[req.PlaceID]--
		text = fmt.Sprintf("You raid the food at %s", req.PlaceID)
	case AbilityScout:
		count := m.occupants(req.PlaceID)
		intel = &Intel{Round: m.round, Source: ab.ID, Place: req.PlaceID, Count: &count, Risk: m.riskAt(req.PlaceID)}
		text = fmt.Sprintf("%s has %d feeding animals and looks %s", req.PlaceID, count, intel.Risk)
	case AbilityTrack:
		intel = &Intel{Round: m.round, Source: ab.ID, PlayerID: target.ID, Place: target.Place}
		text = fmt.Sprintf("You pick up the trail of %s", r.NameOfUnsafe(target.ID))
		if target.Place != "" {
			text += fmt.Sprintf(" at %s", target.Place)
		}
	case AbilityLookout:
		intel = &Intel{Round: m.round, Source: ab.ID, PlayerID: target.ID, Role: target.Role, Species: target.Species}
		text = fmt.Sprintf("%s is a %s", r.NameOfUnsafe(target.ID), roleTable[target.Role].Name)
	}

	me.Cooldowns[ab.ID] = m.round + ab.Cooldown
	me.Uses[ab.ID]++
	if intel != nil {
		me.Intel = append(me.Intel, *intel)
	}
	entry := game.NewLogEntry(m.round, "ability", text, me.ID, map[string]interface{}{"ability": ab.ID})
	m.log = append(m.log, entry)
	reply := game.Reply{"abilityId": ab.ID}
	if intel != nil {
		reply["intel"] = *intel
	}
	return game.Outcome{Reply: reply, Events: []game.Event{game.LogEvent(entry)}}, nil
}

func hasAbility(role RoleID, id AbilityID) bool {
	for _, a := range roleTable[role].Abilities {
		if a == id {
			return true
		}
	}
	return false
}

// ForceEnd moves start to running, or resolves a running round. Timer expiry
// and the host's force end both land here.
func (m *Machine) ForceEnd(r *game.Room) (game.Outcome, error) {
	switch m.phase {
	case PhaseStart:
		m.phase = PhaseRunning
		return game.Outcome{
			Events: []game.Event{game.PhaseChangeEvent(PhaseStart, PhaseRunning)},
			Timer:  game.StartTimer(m.pendingSeconds),
		}, nil
	case PhaseRunning:
		return m.resolveRound(r)
	}
	return game.Outcome{}, fmt.Errorf("animal: force end in phase %s", m.phase)
}

func (m *Machine) nextRound(r *game.Room) (game.Outcome, error) {
	m.round++
	m.beginReady()
	return game.Outcome{
		Reply:  game.Reply{"round": m.round},
		Events: []game.Event{game.PhaseChangeEvent(PhaseResult, PhaseReady)},
	}, nil
}

func (m *Machine) Reset(r *game.Room) game.Outcome {
	from := m.phase
	*m = Machine{
		phase:     PhaseLobby,
		players:   map[string]*PlayerState{},
		capacity:  Capacities(0),
		modifiers: map[PlaceID]int{},
		rng:       m.rng,
	}
	return game.Outcome{Events: []game.Event{game.PhaseChangeEvent(from, PhaseLobby)}}
}

func (m *Machine) aliveCount(s Species) int {
	n := 0
	for _, p := range m.players {
		if p.Alive && p.Species == s {
			n++
		}
	}
	return n
}

// occupants counts living non-carnivores at a place.
func (m *Machine) occupants(place PlaceID) int {
	n := 0
	for _, p := range m.players {
		if p.Alive && p.Species != Carnivore && p.Place == place {
			n++
		}
	}
	return n
}

// capacityAt is the modifier-adjusted capacity of a place, never negative.
func (m *Machine) capacityAt(place PlaceID) int {
	mod := m.modifiers[place]
	for _, p := range m.players {
		if p.Alive && p.Place == place {
			mod += roleTable[p.Role].CapacityBonus
		}
	}
	return adjustCapacity(m.capacity[place], mod)
}

func (m *Machine) riskAt(place PlaceID) Risk {
	if m.occupants(place) > m.capacityAt(place) {
		return RiskCrowded
	}
	return RiskSafe
}
