package animal

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAnimalRoom(t *testing.T, unit time.Duration, players int) (*game.Engine, *game.Room) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	e := game.NewEngine(game.WithLogger(logger), game.WithSecond(unit))
	e.Register(game.GameAnimal, func(game.RoomConfig) (game.Machine, error) {
		return New(rand.New(rand.NewSource(7))), nil
	})
	r, err := e.CreateRoom(models.Host{ID: "host", Name: "Host", Connected: true}, game.RoomConfig{GameType: game.GameAnimal})
	require.NoError(t, err)
	for i := 0; i < players; i++ {
		_, err := e.JoinRoom(r.ID, fmt.Sprintf("p%d", i), fmt.Sprintf("P%d", i), "conn")
		require.NoError(t, err)
	}
	return e, r
}

func do(t *testing.T, e *game.Engine, r *game.Room, session, typ, requestID string, payload interface{}) (game.Reply, error) {
	t.Helper()
	return e.Apply(context.Background(), session, models.NewAction(r.ID, typ, requestID, payload))
}

func machineOf(r *game.Room) *Machine { return r.Game.(*Machine) }

func setRole(p *PlayerState, role RoleID) {
	p.Role = role
	p.Species = roleTable[role].Species
}

func TestCapacityDerivation(t *testing.T) {
	for n := 0; n <= 80; n++ {
		caps := Capacities(n)
		want := (85*n + 50) / 100
		if want < 4 {
			want = 4
		}
		sum := 0
		for _, p := range Places {
			require.GreaterOrEqual(t, caps[p], 1, "n=%d place=%s", n, p)
			sum += caps[p]
		}
		assert.Equal(t, want, sum, "n=%d", n)
	}

	assert.Equal(t, map[PlaceID]int{PlaceA: 1, PlaceB: 1, PlaceC: 1, PlaceD: 1}, Capacities(5))
	assert.Equal(t, map[PlaceID]int{PlaceA: 3, PlaceB: 3, PlaceC: 2, PlaceD: 1}, Capacities(10))
	assert.Equal(t, 17, totalFood(20))
}

func TestCapacityClampsAtZero(t *testing.T) {
	assert.Equal(t, 0, adjustCapacity(1, -3))
	assert.Equal(t, 3, adjustCapacity(2, 1))
}

func TestSpeciesCounts(t *testing.T) {
	cases := []struct{ n, carn, omni, herb int }{
		{2, 1, 0, 1},
		{4, 1, 0, 3},
		{6, 1, 1, 4},
		{8, 2, 1, 5},
		{12, 3, 2, 7},
	}
	for _, c := range cases {
		carn, omni, herb := speciesCounts(c.n)
		assert.Equal(t, []int{c.carn, c.omni, c.herb}, []int{carn, omni, herb}, "n=%d", c.n)
	}
}

func TestDrawRolesRefillsPool(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	roles := drawRoles(rng, speciesPool(Carnivore), 4)
	require.Len(t, roles, 4)
	// Without replacement: each pass over the pool uses both roles once.
	assert.ElementsMatch(t, []RoleID{RoleLion, RoleWolf}, roles[:2])
	assert.ElementsMatch(t, []RoleID{RoleLion, RoleWolf}, roles[2:])
}

func TestAssignRolesComposition(t *testing.T) {
	e, r := setupAnimalRoom(t, time.Second, 8)
	reply, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reply["carnivores"])

	r.Mu.Lock()
	defer r.Mu.Unlock()
	m := machineOf(r)
	counts := map[Species]int{}
	for _, p := range m.players {
		counts[p.Species]++
		assert.True(t, p.Alive)
	}
	assert.Equal(t, map[Species]int{Carnivore: 2, Omnivore: 1, Herbivore: 5}, counts)
	assert.Equal(t, PhaseReady, m.Phase())
	assert.Equal(t, game.StatusInProgress, r.Status)
}

func TestEightPlayerRound(t *testing.T) {
	e, r := setupAnimalRoom(t, 20*time.Millisecond, 8)
	_, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	m := machineOf(r)
	var carnivores []string
	var prey string
	for _, id := range m.order {
		switch p := m.players[id]; {
		case p.Species == Carnivore:
			carnivores = append(carnivores, id)
		case p.Species == Herbivore && prey == "":
			prey = id
		}
	}
	r.Mu.Unlock()
	require.Len(t, carnivores, 2)
	require.NotEmpty(t, prey)

	for _, id := range append([]string{prey}, carnivores...) {
		_, err := do(t, e, r, id, ActionLockPlace, "lock-"+id, map[string]string{"placeId": "A"})
		require.NoError(t, err)
	}
	_, err = do(t, e, r, "host", game.ActionStartRound, "", map[string]int{"duration": 5})
	require.NoError(t, err)

	r.Mu.Lock()
	assert.Equal(t, PhaseStart, m.Phase())
	r.Mu.Unlock()

	// Skip the fixed start countdown; the hunt runs on its own timer.
	_, err = do(t, e, r, "host", game.ActionForceEnd, "", nil)
	require.NoError(t, err)
	for _, id := range carnivores {
		_, err := do(t, e, r, id, ActionEat, "", map[string]string{"targetId": prey})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		return m.Phase() == PhaseResult || m.Phase() == PhaseEnded
	}, 3*time.Second, 5*time.Millisecond)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	require.NotNil(t, m.LastResult())
	assert.Equal(t, []string{prey}, m.LastResult().EatenIDs)
	assert.False(t, m.Player(prey).Alive)
	assert.Equal(t, "eaten", m.Player(prey).Cause)
	scores := []int{m.Player(carnivores[0]).Score, m.Player(carnivores[1]).Score}
	assert.ElementsMatch(t, []int{0, 1}, scores)
	assert.Len(t, m.LastResult().Kills, 1)
}

func TestStarvationBound(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		_, r := setupAnimalRoom(t, time.Second, 10)
		r.Mu.Lock()
		m := machineOf(r)
		m.rng = rand.New(rand.NewSource(seed))
		_, err := m.assignRoles(r)
		require.NoError(t, err)
		for i, id := range m.order {
			p := m.players[id]
			p.Place = Places[i%2]
			p.Locked = true
			if i%3 == 0 {
				p.grant(BuffStarveShield, m.round)
			}
		}
		m.phase = PhaseRunning
		shielded := map[string]bool{}
		for id, p := range m.players {
			shielded[id] = p.buff(BuffStarveShield) != nil
		}
		caps := map[PlaceID]int{}
		for _, place := range Places {
			caps[place] = m.capacityAt(place)
		}

		_, err = m.resolveRound(r)
		require.NoError(t, err)

		for _, place := range Places {
			alive := 0
			allShielded := true
			for _, p := range m.players {
				if p.Alive && p.Species != Carnivore && p.Place == place {
					alive++
					allShielded = allShielded && shielded[p.ID]
				}
			}
			if !allShielded {
				assert.LessOrEqual(t, alive, caps[place], "seed=%d place=%s", seed, place)
			}
		}
		for _, id := range m.LastResult().StarvedIDs {
			assert.False(t, shielded[id], "shielded player %s starved", id)
		}
		for _, p := range m.players {
			assert.Empty(t, p.Buffs)
		}
		r.Mu.Unlock()
	}
}

func TestEatShieldAndPierce(t *testing.T) {
	_, r := setupAnimalRoom(t, time.Second, 4)
	r.Mu.Lock()
	defer r.Mu.Unlock()
	m := machineOf(r)
	_, err := m.assignRoles(r)
	require.NoError(t, err)

	setRole(m.players["p0"], RoleLion)
	setRole(m.players["p1"], RoleTurtle)
	setRole(m.players["p2"], RoleRabbit)
	setRole(m.players["p3"], RoleDeer)
	for _, id := range m.order {
		m.players[id].Place = PlaceA
		m.players[id].Locked = true
	}
	m.capacity = map[PlaceID]int{PlaceA: 10, PlaceB: 1, PlaceC: 1, PlaceD: 1}
	m.phase = PhaseRunning
	m.players["p1"].grant(BuffEatShield, 1)
	m.players["p0"].Intent = "p1"

	_, err = m.resolveRound(r)
	require.NoError(t, err)
	assert.True(t, m.players["p1"].Alive)
	assert.Equal(t, []string{"p1"}, m.LastResult().Shielded)
	assert.Empty(t, m.players["p1"].Buffs)

	_, err = m.nextRound(r)
	require.NoError(t, err)
	m.capacity = map[PlaceID]int{PlaceA: 10, PlaceB: 1, PlaceC: 1, PlaceD: 1}
	m.phase = PhaseRunning
	m.players["p1"].grant(BuffEatShield, 2)
	m.players["p0"].grant(BuffPierce, 2)
	m.players["p0"].Intent = "p1"

	_, err = m.resolveRound(r)
	require.NoError(t, err)
	assert.False(t, m.players["p1"].Alive)
	assert.Equal(t, []string{"p1"}, m.LastResult().EatenIDs)
}

func TestEatValidation(t *testing.T) {
	e, r := setupAnimalRoom(t, time.Second, 4)
	_, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	m := machineOf(r)
	setRole(m.players["p0"], RoleWolf)
	setRole(m.players["p1"], RoleLion)
	setRole(m.players["p2"], RoleRabbit)
	setRole(m.players["p3"], RoleDeer)
	r.Mu.Unlock()

	for id, place := range map[string]string{"p0": "A", "p1": "A", "p2": "A", "p3": "B"} {
		_, err := do(t, e, r, id, ActionLockPlace, "", map[string]string{"placeId": place})
		require.NoError(t, err)
	}
	_, err = do(t, e, r, "host", game.ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)
	_, err = do(t, e, r, "p0", ActionEat, "", map[string]string{"targetId": "p2"})
	assert.ErrorIs(t, err, game.ErrWrongPhase)
	_, err = do(t, e, r, "host", game.ActionForceEnd, "", nil)
	require.NoError(t, err)

	_, err = do(t, e, r, "p2", ActionEat, "", map[string]string{"targetId": "p3"})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)
	_, lionErr := do(t, e, r, "p0", ActionEat, "", map[string]string{"targetId": "p1"})
	assert.ErrorIs(t, lionErr, game.ErrInvalidTarget)
	_, farErr := do(t, e, r, "p0", ActionEat, "", map[string]string{"targetId": "p3"})
	assert.ErrorIs(t, farErr, game.ErrInvalidTarget)
	// Refusals read the same whether the target is a carnivore or elsewhere.
	require.Error(t, lionErr)
	assert.Equal(t, lionErr.Error(), farErr.Error())
	assert.NotContains(t, farErr.Error(), "B")
	_, err = do(t, e, r, "p0", ActionEat, "", map[string]string{"targetId": "ghost"})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)

	_, err = do(t, e, r, "p0", ActionEat, "", map[string]string{"targetId": "p2"})
	require.NoError(t, err)
	r.Mu.Lock()
	assert.Equal(t, "p2", m.players["p0"].Intent)
	r.Mu.Unlock()
}

func TestLockPlaceReplayIsNoop(t *testing.T) {
	e, r := setupAnimalRoom(t, time.Second, 3)
	_, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)

	_, err = do(t, e, r, "p0", ActionLockPlace, "lock-1", map[string]string{"placeId": "B"})
	require.NoError(t, err)
	reply, err := do(t, e, r, "p0", ActionLockPlace, "lock-1", map[string]string{"placeId": "B"})
	require.NoError(t, err)
	assert.Equal(t, true, reply["duplicate"])

	_, err = do(t, e, r, "p0", ActionLockPlace, "lock-2", map[string]string{"placeId": "C"})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)
	_, err = do(t, e, r, "p1", ActionLockPlace, "", map[string]string{"placeId": "Z"})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)

	r.Mu.Lock()
	assert.Equal(t, PlaceB, machineOf(r).players["p0"].Place)
	r.Mu.Unlock()
}

func TestAbilityGating(t *testing.T) {
	e, r := setupAnimalRoom(t, time.Second, 3)
	_, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	m := machineOf(r)
	setRole(m.players["p0"], RoleRabbit)
	setRole(m.players["p1"], RoleTurtle)
	setRole(m.players["p2"], RoleLion)
	r.Mu.Unlock()

	_, err = do(t, e, r, "p0", ActionUseAbility, "", map[string]string{"abilityId": "burrow"})
	assert.ErrorIs(t, err, game.ErrWrongPhase)
	_, err = do(t, e, r, "p0", ActionUseAbility, "", map[string]string{"abilityId": "pierce"})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)

	_, err = do(t, e, r, "host", game.ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)
	_, err = do(t, e, r, "host", game.ActionForceEnd, "", nil)
	require.NoError(t, err)

	_, err = do(t, e, r, "p0", ActionUseAbility, "", map[string]string{"abilityId": "burrow"})
	require.NoError(t, err)
	_, err = do(t, e, r, "p0", ActionUseAbility, "", map[string]string{"abilityId": "burrow"})
	assert.ErrorIs(t, err, game.ErrCooldownActive)

	r.Mu.Lock()
	m.players["p1"].Uses[AbilityShell] = 2
	r.Mu.Unlock()
	_, err = do(t, e, r, "p1", ActionUseAbility, "", map[string]string{"abilityId": "shell"})
	assert.ErrorIs(t, err, game.ErrNoUsesRemaining)

	r.Mu.Lock()
	assert.NotNil(t, m.players["p0"].buff(BuffEatShield))
	assert.Nil(t, m.players["p1"].buff(BuffEatShield))
	r.Mu.Unlock()
}

func TestVisibility(t *testing.T) {
	e, r := setupAnimalRoom(t, time.Second, 3)
	_, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	m := machineOf(r)
	setRole(m.players["p0"], RoleGiraffe)
	setRole(m.players["p1"], RoleWolf)
	setRole(m.players["p2"], RoleDeer)

	view := m.Project(r, game.Viewer{ID: "p0"}).(View)
	require.NotNil(t, view.Me)
	assert.Equal(t, RoleGiraffe, view.Me.Role)
	for _, o := range view.Others {
		assert.Empty(t, o.Role, "role of %s leaked", o.ID)
		assert.Empty(t, o.Species)
	}
	for _, p := range view.Places {
		assert.Equal(t, RiskUnknown, p.Risk)
		assert.Nil(t, p.Occupants)
	}
	assert.Nil(t, view.Players)
	r.Mu.Unlock()

	_, err = do(t, e, r, "p0", ActionUseAbility, "", map[string]string{"abilityId": "lookout", "targetId": "p1"})
	require.NoError(t, err)
	_, err = do(t, e, r, "p0", ActionLockPlace, "", map[string]string{"placeId": "C"})
	require.NoError(t, err)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	view = m.Project(r, game.Viewer{ID: "p0"}).(View)
	for _, o := range view.Others {
		if o.ID == "p1" {
			assert.Equal(t, RoleWolf, o.Role)
		} else {
			assert.Empty(t, o.Role)
		}
	}
	for _, p := range view.Places {
		if p.ID == PlaceC {
			require.NotNil(t, p.Occupants)
			assert.Equal(t, 1, *p.Occupants)
			assert.Equal(t, RiskSafe, p.Risk)
		} else {
			assert.Equal(t, RiskUnknown, p.Risk)
		}
	}

	other := m.Project(r, game.Viewer{ID: "p2"}).(View)
	for _, o := range other.Others {
		assert.Empty(t, o.Role)
	}
	for _, entry := range other.Log {
		assert.NotEqual(t, "p0", entry.Owner)
	}

	host := m.Project(r, game.Viewer{ID: "host", IsHost: true}).(View)
	assert.Len(t, host.Players, 3)
	for _, o := range host.Others {
		assert.NotEmpty(t, o.Role)
	}
}

func TestScoutIntelExpiresWithRound(t *testing.T) {
	e, r := setupAnimalRoom(t, time.Second, 3)
	_, err := do(t, e, r, "host", ActionAssignRoles, "", nil)
	require.NoError(t, err)
	r.Mu.Lock()
	m := machineOf(r)
	setRole(m.players["p0"], RoleDeer)
	setRole(m.players["p1"], RoleLion)
	setRole(m.players["p2"], RoleRabbit)
	r.Mu.Unlock()

	reply, err := do(t, e, r, "p0", ActionUseAbility, "", map[string]string{"abilityId": "scout", "placeId": "D"})
	require.NoError(t, err)
	intel := reply["intel"].(Intel)
	assert.Equal(t, PlaceD, intel.Place)

	r.Mu.Lock()
	view := m.Project(r, game.Viewer{ID: "p0"}).(View)
	assert.NotEqual(t, RiskUnknown, view.Places[3].Risk)
	m.round++
	view = m.Project(r, game.Viewer{ID: "p0"}).(View)
	assert.Equal(t, RiskUnknown, view.Places[3].Risk)
	r.Mu.Unlock()
}
