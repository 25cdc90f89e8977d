package animal

import (
	"fmt"
	"slices"
	"sort"

	"github.com/jason-s-yu/partyroom/internal/game"
)

// resolveRound settles the hunt and then starvation. Predators act in random
// order; a target can only be eaten once. Every buff and modifier expires at
// the end, used or not.
func (m *Machine) resolveRound(r *game.Room) (game.Outcome, error) {
	if len(m.players) == 0 {
		return game.Outcome{}, fmt.Errorf("animal: resolving a round without players")
	}
	m.phase = PhaseResolve
	result := &RoundResult{Round: m.round, EatenIDs: []string{}, StarvedIDs: []string{}, Kills: map[string]string{}}
	events := []game.Event{game.PhaseChangeEvent(PhaseRunning, PhaseResolve)}

	var predators []*PlayerState
	for _, id := range m.order {
		if p := m.players[id]; p.Alive && p.Species == Carnivore && p.Intent != "" {
			predators = append(predators, p)
		}
	}
	m.rng.Shuffle(len(predators), func(i, j int) { predators[i], predators[j] = predators[j], predators[i] })

	for _, pred := range predators {
		target := m.players[pred.Intent]
		if target == nil || !target.Alive || target.Place != pred.Place {
			continue
		}
		if shield := target.buff(BuffEatShield); shield != nil && pred.buff(BuffPierce) == nil {
			shield.Charges--
			result.Shielded = append(result.Shielded, target.ID)
			events = append(events, m.private(target.ID, "shield", "Your shield turned a predator away"))
			events = append(events, m.private(pred.ID, "hunt_failed", fmt.Sprintf("%s escaped", r.NameOfUnsafe(target.ID))))
			continue
		}
		m.kill(target, "eaten")
		pred.Score++
		result.EatenIDs = append(result.EatenIDs, target.ID)
		result.Kills[pred.ID] = target.ID
		events = append(events, m.private(pred.ID, "hunt", fmt.Sprintf("You caught %s", r.NameOfUnsafe(target.ID))))
	}

	for _, place := range Places {
		excess := m.occupants(place) - m.capacityAt(place)
		if excess <= 0 {
			continue
		}
		var exposed []*PlayerState
		for _, id := range m.order {
			p := m.players[id]
			if p.Alive && p.Species != Carnivore && p.Place == place && p.buff(BuffStarveShield) == nil {
				exposed = append(exposed, p)
			}
		}
		m.rng.Shuffle(len(exposed), func(i, j int) { exposed[i], exposed[j] = exposed[j], exposed[i] })
		for i := 0; i < excess && i < len(exposed); i++ {
			m.kill(exposed[i], "starved")
			result.StarvedIDs = append(result.StarvedIDs, exposed[i].ID)
		}
	}
	sort.Strings(result.StarvedIDs)

	for _, p := range m.players {
		p.Buffs = nil
		p.Intent = ""
		if p.Alive && p.Species != Carnivore {
			p.Score++
		}
	}
	m.modifiers = map[PlaceID]int{}

	survivors := m.aliveCount(Herbivore) + m.aliveCount(Omnivore)
	result.Survivors = survivors
	m.last = result

	summary := fmt.Sprintf("Round %d: %d eaten, %d starved, %d survive", m.round, len(result.EatenIDs), len(result.StarvedIDs), survivors)
	entry := game.NewLogEntry(m.round, "result", summary, "", nil)
	m.log = append(m.log, entry)
	events = append(events, game.RoomEvent(game.EventRoundResult, publicResult(result)), game.LogEvent(entry))

	out := game.Outcome{Reply: game.Reply{"eatenIds": result.EatenIDs, "starvedIds": result.StarvedIDs}}
	if survivors == 0 || m.round >= r.Config.TotalRounds {
		m.phase = PhaseEnded
		events = append(events, game.PhaseChangeEvent(PhaseResolve, PhaseEnded))
		out.GameOver = &game.GameOver{Winners: r.NamesUnsafe(m.winners())}
	} else {
		m.phase = PhaseResult
		events = append(events, game.PhaseChangeEvent(PhaseResolve, PhaseResult))
	}
	out.Events = events
	return out, nil
}

func (m *Machine) kill(p *PlayerState, cause string) {
	p.Alive = false
	p.DiedRound = m.round
	p.Cause = cause
}

func (m *Machine) private(owner, kind, text string) game.Event {
	entry := game.NewLogEntry(m.round, kind, text, owner, nil)
	m.log = append(m.log, entry)
	return game.LogEvent(entry)
}

// winners are all surviving prey plus the carnivores tied for the best score.
func (m *Machine) winners() []string {
	best := -1
	for _, id := range m.order {
		if p := m.players[id]; p.Species == Carnivore && p.Score > best {
			best = p.Score
		}
	}
	var out []string
	for _, id := range m.order {
		p := m.players[id]
		switch {
		case p.Species == Carnivore && p.Score == best:
			out = append(out, id)
		case p.Species != Carnivore && p.Alive:
			out = append(out, id)
		}
	}
	return out
}

// publicResult hides who ate whom. The copy shares nothing with res.
func publicResult(res *RoundResult) RoundResult {
	return RoundResult{
		Round:      res.Round,
		EatenIDs:   slices.Clone(res.EatenIDs),
		StarvedIDs: slices.Clone(res.StarvedIDs),
		Survivors:  res.Survivors,
	}
}
