package animal

import (
	"math/rand"

	"github.com/jason-s-yu/partyroom/internal/game"
)

// Species decides who hunts and who feeds.
type Species string

const (
	Carnivore Species = "carnivore"
	Herbivore Species = "herbivore"
	Omnivore  Species = "omnivore"
)

type RoleID string

const (
	RoleLion     RoleID = "lion"
	RoleWolf     RoleID = "wolf"
	RoleBear     RoleID = "bear"
	RoleRaccoon  RoleID = "raccoon"
	RoleRabbit   RoleID = "rabbit"
	RoleTurtle   RoleID = "turtle"
	RoleDeer     RoleID = "deer"
	RoleElephant RoleID = "elephant"
	RoleGiraffe  RoleID = "giraffe"
)

type AbilityID string

const (
	AbilityPierce    AbilityID = "pierce"
	AbilityTrack     AbilityID = "track"
	AbilityHibernate AbilityID = "hibernate"
	AbilityRaid      AbilityID = "raid"
	AbilityBurrow    AbilityID = "burrow"
	AbilityShell     AbilityID = "shell"
	AbilityScout     AbilityID = "scout"
	AbilityGraze     AbilityID = "graze"
	AbilityLookout   AbilityID = "lookout"
)

// TargetKind is what an ability is aimed at.
type TargetKind string

const (
	TargetSelf   TargetKind = "self"
	TargetPlayer TargetKind = "player"
	TargetPlace  TargetKind = "place"
)

// Ability is a static description. Cooldown is the number of rounds before
// the ability can be used again (1 means once per round); MaxUses of zero
// means no per-game cap.
type Ability struct {
	ID       AbilityID    `json:"id"`
	Name     string       `json:"name"`
	Target   TargetKind   `json:"target"`
	Phases   []game.Phase `json:"phases"`
	Cooldown int          `json:"cooldown"`
	MaxUses  int          `json:"maxUses,omitempty"`
}

func (a Ability) allows(p game.Phase) bool {
	for _, allowed := range a.Phases {
		if allowed == p {
			return true
		}
	}
	return false
}

// Role is a static description of a playable animal.
type Role struct {
	ID        RoleID      `json:"id"`
	Name      string      `json:"name"`
	Species   Species     `json:"species"`
	Abilities []AbilityID `json:"abilities"`

	// CapacityBonus is added to the capacity of the place the role stands on
	// while alive.
	CapacityBonus int `json:"capacityBonus,omitempty"`

	weight int
}

var (
	runningOnly  = []game.Phase{PhaseRunning}
	readyRunning = []game.Phase{PhaseReady, PhaseRunning}
)

// abilityTable is read-only after init.
var abilityTable = map[AbilityID]Ability{
	AbilityPierce:    {ID: AbilityPierce, Name: "Pierce", Target: TargetSelf, Phases: runningOnly, Cooldown: 2},
	AbilityTrack:     {ID: AbilityTrack, Name: "Track", Target: TargetPlayer, Phases: readyRunning, Cooldown: 1},
	AbilityHibernate: {ID: AbilityHibernate, Name: "Hibernate", Target: TargetSelf, Phases: runningOnly, Cooldown: 2},
	AbilityRaid:      {ID: AbilityRaid, Name: "Raid", Target: TargetPlace, Phases: runningOnly, Cooldown: 2},
	AbilityBurrow:    {ID: AbilityBurrow, Name: "Burrow", Target: TargetSelf, Phases: runningOnly, Cooldown: 2},
	AbilityShell:     {ID: AbilityShell, Name: "Shell", Target: TargetSelf, Phases: runningOnly, Cooldown: 1, MaxUses: 2},
	AbilityScout:     {ID: AbilityScout, Name: "Scout", Target: TargetPlace, Phases: readyRunning, Cooldown: 1},
	AbilityGraze:     {ID: AbilityGraze, Name: "Graze", Target: TargetSelf, Phases: runningOnly, Cooldown: 2},
	AbilityLookout:   {ID: AbilityLookout, Name: "Lookout", Target: TargetPlayer, Phases: readyRunning, Cooldown: 1, MaxUses: 2},
}

var roleTable = map[RoleID]Role{
	RoleLion:     {ID: RoleLion, Name: "Lion", Species: Carnivore, Abilities: []AbilityID{AbilityPierce}, weight: 2},
	RoleWolf:     {ID: RoleWolf, Name: "Wolf", Species: Carnivore, Abilities: []AbilityID{AbilityTrack}, weight: 3},
	RoleBear:     {ID: RoleBear, Name: "Bear", Species: Omnivore, Abilities: []AbilityID{AbilityHibernate}, weight: 1},
	RoleRaccoon:  {ID: RoleRaccoon, Name: "Raccoon", Species: Omnivore, Abilities: []AbilityID{AbilityRaid}, weight: 2},
	RoleRabbit:   {ID: RoleRabbit, Name: "Rabbit", Species: Herbivore, Abilities: []AbilityID{AbilityBurrow}, weight: 3},
	RoleTurtle:   {ID: RoleTurtle, Name: "Turtle", Species: Herbivore, Abilities: []AbilityID{AbilityShell}, weight: 2},
	RoleDeer:     {ID: RoleDeer, Name: "Deer", Species: Herbivore, Abilities: []AbilityID{AbilityScout}, weight: 3},
	RoleElephant: {ID: RoleElephant, Name: "Elephant", Species: Herbivore, Abilities: []AbilityID{AbilityGraze}, CapacityBonus: 1, weight: 1},
	RoleGiraffe:  {ID: RoleGiraffe, Name: "Giraffe", Species: Herbivore, Abilities: []AbilityID{AbilityLookout}, weight: 2},
}

// AbilityByID looks an ability up in the registry.
func AbilityByID(id AbilityID) (Ability, bool) {
	a, ok := abilityTable[id]
	return a, ok
}

// RoleByID looks a role up in the registry.
func RoleByID(id RoleID) (Role, bool) {
	r, ok := roleTable[id]
	return r, ok
}

// speciesPool returns the roles of a species in a stable order.
func speciesPool(s Species) []Role {
	order := []RoleID{RoleLion, RoleWolf, RoleBear, RoleRaccoon, RoleRabbit, RoleTurtle, RoleDeer, RoleElephant, RoleGiraffe}
	var pool []Role
	for _, id := range order {
		if r := roleTable[id]; r.Species == s {
			pool = append(pool, r)
		}
	}
	return pool
}

// speciesCounts is the composition of a game with n players.
func speciesCounts(n int) (carnivores, omnivores, herbivores int) {
	carnivores = n / 4
	if carnivores < 1 {
		carnivores = 1
	}
	switch {
	case n >= 10:
		omnivores = 2
	case n >= 6:
		omnivores = 1
	}
	herbivores = n - carnivores - omnivores
	return
}

// drawRoles draws n roles from a weighted pool without replacement. The pool
// is refilled once it runs dry, so large games repeat roles.
func drawRoles(rng *rand.Rand, pool []Role, n int) []RoleID {
	out := make([]RoleID, 0, n)
	var avail []Role
	for len(out) < n {
		if len(avail) == 0 {
			avail = append(avail[:0], pool...)
		}
		total := 0
		for _, r := range avail {
			total += r.weight
		}
		pick := rng.Intn(total)
		for i, r := range avail {
			if pick < r.weight {
				out = append(out, r.ID)
				avail = append(avail[:i], avail[i+1:]...)
				break
			}
			pick -= r.weight
		}
	}
	return out
}
