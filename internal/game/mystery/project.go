package mystery

import (
	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/scenario"
)

// CastEntry is a role under its current public name.
type CastEntry struct {
	RoleID string `json:"roleId"`
	Name   string `json:"name"`
}

// TargetView lists what can be investigated, never the cards.
type TargetView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards int    `json:"cards"`
}

// Me is the viewer's own secret record.
type Me struct {
	RoleID       string   `json:"roleId"`
	Briefing     string   `json:"briefing"`
	Cards        []Reveal `json:"cards"`
	Investigated bool     `json:"investigated"`
	Vote         string   `json:"vote,omitempty"`
}

// Dossier is one player's full record, shown to the host and at the endbook.
type Dossier struct {
	PlayerID string   `json:"playerId"`
	RoleID   string   `json:"roleId"`
	Cards    []Reveal `json:"cards"`
	Vote     string   `json:"vote,omitempty"`
}

// View is the Murder-Mystery part of a snapshot.
type View struct {
	ScenarioID string          `json:"scenarioId"`
	Title      string          `json:"title"`
	Synopsis   string          `json:"synopsis"`
	Flow       []game.Phase    `json:"flow"`
	Round      int             `json:"round"`
	Cast       []CastEntry     `json:"cast"`
	Parts      []scenario.Part `json:"parts"`
	Targets    []TargetView    `json:"targets"`
	Manual     bool            `json:"manual"`
	Voters     []string        `json:"voters"`
	Me         *Me             `json:"me,omitempty"`
	Pending    []Request       `json:"pending"`
	Result     *VoteResult     `json:"result,omitempty"`
	Endbook    string          `json:"endbook,omitempty"`
	Dossiers   []Dossier       `json:"dossiers,omitempty"`
	Log        []game.LogEntry `json:"log"`
}

// Project hides who plays which role, every card a player drew and the
// individual ballots from everyone but their owner until the endbook. A host
// running the game sees everything; a seated host is a suspect like the rest.
func (m *Machine) Project(r *game.Room, v game.Viewer) interface{} {
	gm := gameMaster(r, v)
	view := View{
		ScenarioID: m.sc.ID,
		Title:      m.sc.Title,
		Synopsis:   m.sc.Synopsis,
		Flow:       m.Flow(),
		Round:      m.Round(),
		Manual:     m.manual(r),
		Voters:     game.SortedKeys(voterSet(m.votes)),
		Pending:    []Request{},
		Log:        game.FilterLog(m.log, game.Viewer{ID: v.ID, IsHost: gm}),
	}
	for _, role := range m.sc.Roles {
		view.Cast = append(view.Cast, CastEntry{RoleID: role.ID, Name: m.displayNames[role.ID]})
	}
	for _, id := range m.parts {
		part, _ := m.sc.Part(id)
		view.Parts = append(view.Parts, part)
	}
	for _, t := range m.sc.Targets {
		view.Targets = append(view.Targets, TargetView{ID: t.ID, Name: t.Name, Cards: len(t.Cards)})
	}

	if roleID, dealt := m.roleOf[v.ID]; dealt {
		role, _ := m.sc.Role(roleID)
		view.Me = &Me{
			RoleID:       roleID,
			Briefing:     role.Briefing,
			Cards:        append([]Reveal{}, m.cards[v.ID]...),
			Investigated: m.investigated[m.Round()][v.ID],
			Vote:         m.votes[v.ID],
		}
	}

	for _, req := range m.pending {
		if gm || req.PlayerID == v.ID {
			view.Pending = append(view.Pending, req)
		}
	}

	ended := m.phase == PhaseEndbook
	if ended {
		view.Endbook = m.sc.Endbook
	}
	if m.result != nil && (ended || gm) {
		res := *m.result
		view.Result = &res
	}
	if gm || ended {
		for _, id := range r.PlayerIDsUnsafe() {
			roleID, dealt := m.roleOf[id]
			if !dealt {
				continue
			}
			view.Dossiers = append(view.Dossiers, Dossier{
				PlayerID: id,
				RoleID:   roleID,
				Cards:    append([]Reveal{}, m.cards[id]...),
				Vote:     m.votes[id],
			})
		}
	}
	return view
}

func gameMaster(r *game.Room, v game.Viewer) bool {
	return v.IsHost && !r.HostSeatedUnsafe()
}

func voterSet(votes map[string]string) map[string]bool {
	set := make(map[string]bool, len(votes))
	for id := range votes {
		set[id] = true
	}
	return set
}
