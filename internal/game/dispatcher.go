package game

// publishUnsafe delivers point events and then one snapshot per connected
// viewer. Transport sends are non-blocking enqueues, so this runs under the
// room lock and preserves the room's total order.
func (e *Engine) publishUnsafe(r *Room, events []Event, snapshots bool) {
	for _, ev := range events {
		e.deliverUnsafe(r, ev)
	}
	if snapshots {
		e.sendSnapshotsUnsafe(r)
	}
}

func (e *Engine) deliverUnsafe(r *Room, ev Event) {
	switch ev.Scope {
	case ScopeRoom:
		e.transport.BroadcastToRoom(r.ID, ev.Type, ev.Payload)
	case ScopeHost:
		e.transport.SendToSession(r.Host.ID, ev.Type, ev.Payload)
	case ScopeSession:
		e.transport.SendToSession(ev.To, ev.Type, ev.Payload)
	case ScopeSessionAndHost:
		e.transport.SendToSession(ev.To, ev.Type, ev.Payload)
		if ev.To != r.Host.ID {
			e.transport.SendToSession(r.Host.ID, ev.Type, ev.Payload)
		}
	}
}

// sendSnapshotsUnsafe sends the host view to the host and a player view to
// every other seated player. A seated host only gets the host view.
func (e *Engine) sendSnapshotsUnsafe(r *Room) {
	if r.Host.Connected {
		e.transport.SendToSession(r.Host.ID, EventRoomState, Project(r, r.Host.ID, true))
	}
	for _, p := range r.Players {
		if p.ID == r.Host.ID || !p.Connected {
			continue
		}
		e.transport.SendToSession(p.ID, EventRoomState, Project(r, p.ID, false))
	}
}

// sendSnapshotToUnsafe sends one session its own view.
func (e *Engine) sendSnapshotToUnsafe(r *Room, sessionID string) {
	e.transport.SendToSession(sessionID, EventRoomState, Project(r, sessionID, sessionID == r.Host.ID))
}
