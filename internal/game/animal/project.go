package animal

import "github.com/jason-s-yu/partyroom/internal/game"

// PlaceView is one feeding ground as a viewer sees it. Occupants is only set
// when the viewer stands there or scouted it this round.
type PlaceView struct {
	ID        PlaceID `json:"id"`
	Capacity  int     `json:"capacity"`
	Occupants *int    `json:"occupants,omitempty"`
	Risk      Risk    `json:"risk"`
}

// OtherView is another player as a viewer sees them.
type OtherView struct {
	ID      string  `json:"id"`
	Alive   bool    `json:"alive"`
	Role    RoleID  `json:"role,omitempty"`
	Species Species `json:"species,omitempty"`
	Place   PlaceID `json:"place,omitempty"`
	Locked  bool    `json:"locked"`
	Cause   string  `json:"cause,omitempty"`
}

// View is the Animal-Survival part of a snapshot.
type View struct {
	Round       int             `json:"round"`
	TotalRounds int             `json:"totalRounds"`
	Me          *PlayerState    `json:"me,omitempty"`
	Abilities   []Ability       `json:"abilities,omitempty"`
	Others      []OtherView     `json:"others"`
	Places      []PlaceView     `json:"places"`
	LastResult  *RoundResult    `json:"lastResult,omitempty"`
	Log         []game.LogEntry `json:"log"`

	// Players is the full state, host only.
	Players []*PlayerState `json:"players,omitempty"`
}

func (m *Machine) Project(r *game.Room, v game.Viewer) interface{} {
	view := View{
		Round:       m.round,
		TotalRounds: r.Config.TotalRounds,
		Others:      []OtherView{},
		Places:      make([]PlaceView, 0, len(Places)),
		Log:         game.FilterLog(m.log, v),
	}
	me := m.players[v.ID]
	revealAll := v.IsHost || m.phase == PhaseEnded

	if me != nil {
		cp := clonePlayer(me)
		view.Me = &cp
		for _, id := range roleTable[me.Role].Abilities {
			view.Abilities = append(view.Abilities, abilityTable[id])
		}
	}

	for _, id := range m.order {
		if id == v.ID {
			continue
		}
		p := m.players[id]
		o := OtherView{ID: id, Alive: p.Alive, Locked: p.Locked}
		if !p.Alive {
			o.Cause = p.Cause
		}
		if revealAll {
			o.Role, o.Species, o.Place = p.Role, p.Species, p.Place
		} else if me != nil {
			for _, in := range me.Intel {
				if in.PlayerID != id {
					continue
				}
				if in.Role != "" {
					o.Role, o.Species = in.Role, in.Species
				}
				if in.Place != "" && in.Round == m.round {
					o.Place = in.Place
				}
			}
		}
		view.Others = append(view.Others, o)
	}

	for _, place := range Places {
		pv := PlaceView{ID: place, Capacity: m.capacity[place], Risk: RiskUnknown}
		if v.IsHost || m.knowsPlace(me, place) {
			count := m.occupants(place)
			pv.Occupants = &count
			pv.Capacity = m.capacityAt(place)
			pv.Risk = m.riskAt(place)
		}
		view.Places = append(view.Places, pv)
	}

	if m.last != nil {
		res := publicResult(m.last)
		if v.IsHost {
			res = *m.last
		}
		view.LastResult = &res
	}

	if v.IsHost {
		for _, id := range m.order {
			cp := clonePlayer(m.players[id])
			view.Players = append(view.Players, &cp)
		}
	}
	return view
}

// knowsPlace reports whether the viewer stands at the place or holds intel on
// it from the current round.
func (m *Machine) knowsPlace(me *PlayerState, place PlaceID) bool {
	if me == nil {
		return false
	}
	if me.Alive && me.Place == place && me.Locked {
		return true
	}
	for _, in := range me.Intel {
		if in.Round == m.round && in.Place == place && in.Count != nil {
			return true
		}
	}
	return false
}

func clonePlayer(p *PlayerState) PlayerState {
	cp := *p
	cp.Buffs = append([]Buff(nil), p.Buffs...)
	cp.Intel = append([]Intel(nil), p.Intel...)
	cp.Cooldowns = make(map[AbilityID]int, len(p.Cooldowns))
	for k, v := range p.Cooldowns {
		cp.Cooldowns[k] = v
	}
	cp.Uses = make(map[AbilityID]int, len(p.Uses))
	for k, v := range p.Uses {
		cp.Uses[k] = v
	}
	return cp
}
