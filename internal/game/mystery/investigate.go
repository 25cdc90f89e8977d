package mystery

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/scenario"
)

// manual reports whether investigations wait for the game master. A seated
// host cannot act as game master, so delivery falls back to auto.
func (m *Machine) manual(r *game.Room) bool {
	return m.sc.Delivery == scenario.DeliveryManual && !r.HostSeatedUnsafe()
}

// logEvent scopes an owned entry to its owner alone while the host holds a
// seat, since a seated host has no right to other players' secrets.
func (m *Machine) logEvent(r *game.Room, entry game.LogEntry) game.Event {
	if entry.Owner != "" && r.HostSeatedUnsafe() {
		return game.Event{Type: game.EventLog, Scope: game.ScopeSession, To: entry.Owner, Payload: entry}
	}
	return game.LogEvent(entry)
}

func (m *Machine) investigate(r *game.Room, playerID, targetID string) (game.Outcome, error) {
	target, ok := m.sc.Target(targetID)
	if !ok {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "nothing to investigate at %q", targetID)
	}
	if _, dealt := m.roleOf[playerID]; !dealt {
		return game.Outcome{}, game.Errorf(game.ErrNotAParticipant, "you joined after roles were dealt")
	}
	round := m.Round()
	if m.investigated[round][playerID] {
		return game.Outcome{}, game.Errorf(game.ErrNoUsesRemaining, "you already investigated in round %d", round)
	}
	if m.investigated[round] == nil {
		m.investigated[round] = map[string]bool{}
	}
	m.investigated[round][playerID] = true

	if m.manual(r) {
		req := Request{ID: uuid.NewString(), PlayerID: playerID, TargetID: target.ID, Round: round}
		m.pending = append(m.pending, req)
		entry := game.NewLogEntry(round, "investigation_requested",
			fmt.Sprintf("%s asks to investigate %s", r.NameOfUnsafe(playerID), target.Name), playerID,
			map[string]interface{}{"requestId": req.ID, "targetId": target.ID})
		m.log = append(m.log, entry)
		return game.Outcome{
			Reply:  game.Reply{"pending": true, "requestId": req.ID},
			Events: []game.Event{m.logEvent(r, entry)},
		}, nil
	}

	card := m.draw(playerID, target)
	events := m.deliver(r, playerID, target, card, round)
	return game.Outcome{Reply: game.Reply{"card": card}, Events: events}, nil
}

// resolveRequest lets the game master pick the card for a queued request.
func (m *Machine) resolveRequest(r *game.Room, requestID, cardID string) (game.Outcome, error) {
	idx := -1
	for i, req := range m.pending {
		if req.ID == requestID {
			idx = i
		}
	}
	if idx < 0 {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "no pending request %q", requestID)
	}
	req := m.pending[idx]
	target, _ := m.sc.Target(req.TargetID)
	card, ok := target.Card(cardID)
	if !ok {
		return game.Outcome{}, game.Errorf(game.ErrInvalidTarget, "card %q is not in the pool of %s", cardID, target.Name)
	}
	m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
	events := m.deliver(r, req.PlayerID, target, card, req.Round)
	return game.Outcome{Reply: game.Reply{"card": card, "playerId": req.PlayerID}, Events: events}, nil
}

// flushPending resolves every queued request with a drawn card.
func (m *Machine) flushPending(r *game.Room) []game.Event {
	var events []game.Event
	for _, req := range m.pending {
		target, _ := m.sc.Target(req.TargetID)
		card := m.draw(req.PlayerID, target)
		events = append(events, m.deliver(r, req.PlayerID, target, card, req.Round)...)
	}
	m.pending = nil
	return events
}

// draw prefers a card the player has not seen from this target, falling back
// to the full pool once every card was seen.
func (m *Machine) draw(playerID string, target scenario.Target) scenario.Card {
	var fresh []scenario.Card
	for _, c := range target.Cards {
		if !m.seen[playerID][c.ID] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		fresh = target.Cards
	}
	return fresh[m.rng.Intn(len(fresh))]
}

func (m *Machine) deliver(r *game.Room, playerID string, target scenario.Target, card scenario.Card, round int) []game.Event {
	if m.seen[playerID] == nil {
		m.seen[playerID] = map[string]bool{}
	}
	m.seen[playerID][card.ID] = true
	m.cards[playerID] = append(m.cards[playerID], Reveal{Round: round, TargetID: target.ID, Card: card})

	entry := game.NewLogEntry(round, "card", fmt.Sprintf("%s: %s", target.Name, card.Text), playerID,
		map[string]interface{}{"targetId": target.ID, "cardId": card.ID})
	m.log = append(m.log, entry)
	events := []game.Event{m.logEvent(r, entry)}

	events = append(events, m.applyEffect(round, card.Effect)...)
	for _, rule := range m.sc.Rules {
		if rule.Card != card.ID || rule.Round != round || m.appliedRules[rule.ID] {
			continue
		}
		m.appliedRules[rule.ID] = true
		events = append(events, m.applyEffect(round, rule.Effect)...)
	}
	return events
}

// applyEffect pins a part at most once and renames a role publicly.
func (m *Machine) applyEffect(round int, e scenario.Effect) []game.Event {
	var events []game.Event
	if e.RevealPart != "" && !m.partRevealed(e.RevealPart) {
		part, _ := m.sc.Part(e.RevealPart)
		m.parts = append(m.parts, part.ID)
		entry := game.NewLogEntry(round, "part_revealed", fmt.Sprintf("New clue: %s", part.Name), "", map[string]interface{}{"partId": part.ID})
		m.log = append(m.log, entry)
		events = append(events, game.LogEvent(entry))
	}
	if e.Rename != nil && m.displayNames[e.Rename.Role] != e.Rename.Name {
		old := m.displayNames[e.Rename.Role]
		m.displayNames[e.Rename.Role] = e.Rename.Name
		entry := game.NewLogEntry(round, "role_renamed", fmt.Sprintf("%s is now known as %s", old, e.Rename.Name), "",
			map[string]interface{}{"roleId": e.Rename.Role})
		m.log = append(m.log, entry)
		events = append(events, game.LogEvent(entry))
	}
	return events
}

func (m *Machine) partRevealed(id string) bool {
	for _, p := range m.parts {
		if p == id {
			return true
		}
	}
	return false
}
