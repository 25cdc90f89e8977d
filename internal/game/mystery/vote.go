package mystery

import (
	"fmt"
	"maps"

	"github.com/jason-s-yu/partyroom/internal/game"
)

// VoteResult is the outcome of the final vote. SuspectID is nil when the top
// of the tally is tied or nobody voted.
type VoteResult struct {
	Tally       map[string]int `json:"tally"`
	SuspectID   *string        `json:"suspectPlayerId"`
	SuspectRole string         `json:"suspectRole,omitempty"`
	CulpritRole string         `json:"culpritRole"`
	Matched     bool           `json:"matched"`
}

// Tally counts the votes and picks the single most-voted suspect.
func Tally(votes map[string]string) (map[string]int, *string) {
	counts := map[string]int{}
	for _, suspect := range votes {
		counts[suspect]++
	}
	best, tied := 0, 0
	var top string
	for id, n := range counts {
		switch {
		case n > best:
			best, tied, top = n, 1, id
		case n == best:
			tied++
		}
	}
	if tied != 1 {
		return counts, nil
	}
	return counts, &top
}

// Judge decides the vote against the culprit role.
func Judge(votes map[string]string, roleOf map[string]string, culprit string) VoteResult {
	counts, suspect := Tally(votes)
	res := VoteResult{Tally: counts, SuspectID: suspect, CulpritRole: culprit}
	if suspect != nil {
		res.SuspectRole = roleOf[*suspect]
		res.Matched = res.SuspectRole == culprit
	}
	return res
}

func (m *Machine) vote(r *game.Room, voterID, suspectID string) (game.Outcome, error) {
	if _, dealt := m.roleOf[voterID]; !dealt {
		return game.Outcome{}, game.Errorf(game.ErrNotAParticipant, "you joined after roles were dealt")
	}
	if _, ok := m.roleOf[suspectID]; !ok {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "%q is not a suspect", suspectID)
	}
	m.votes[voterID] = suspectID
	entry := game.NewLogEntry(0, "vote", fmt.Sprintf("%s has voted", r.NameOfUnsafe(voterID)), "", nil)
	m.log = append(m.log, entry)
	out := game.Outcome{
		Reply:  game.Reply{"suspectId": suspectID},
		Events: []game.Event{game.LogEvent(entry)},
	}

	// With a seated host nobody can finalize, so the last ballot does.
	if r.HostSeatedUnsafe() && len(m.votes) >= len(m.roleOf) {
		out = out.Merge(m.finalize(r))
	}
	return out, nil
}

// finalize closes the vote and moves to the endbook. A matched vote wins for
// everyone but the culprit; otherwise the culprit wins alone.
func (m *Machine) finalize(r *game.Room) game.Outcome {
	res := Judge(m.votes, m.roleOf, m.sc.CulpritRole)
	m.result = &res
	announced := res
	announced.Tally = maps.Clone(res.Tally)

	var winners []string
	for _, id := range r.PlayerIDsUnsafe() {
		role, dealt := m.roleOf[id]
		if !dealt {
			continue
		}
		if (role == m.sc.CulpritRole) != res.Matched {
			winners = append(winners, id)
		}
	}

	m.phase = PhaseEndbook
	entry := game.NewLogEntry(0, "endbook", m.sc.Endbook, "", nil)
	m.log = append(m.log, entry)
	return game.Outcome{
		Reply: game.Reply{"matched": res.Matched, "suspectPlayerId": res.SuspectID},
		Events: []game.Event{
			game.RoomEvent(game.EventRoundResult, announced),
			game.PhaseChangeEvent(PhaseFinalVote, PhaseEndbook),
			game.LogEvent(entry),
		},
		Timer:    game.CancelTimer(),
		GameOver: &game.GameOver{Winners: r.NamesUnsafe(winners)},
	}
}
