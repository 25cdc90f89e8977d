package game

// IdempotencyGuard remembers the request ids a room has already applied,
// together with the reply each one produced, so a retried submission is
// answered with the original result instead of running again.
//
// The set lives as long as the room (or until reset). Per-room action volume
// is small enough that no eviction is done.
type IdempotencyGuard struct {
	applied  map[string]Reply
	inflight map[string]struct{}
}

func newIdempotencyGuard() IdempotencyGuard {
	return IdempotencyGuard{
		applied:  make(map[string]Reply),
		inflight: make(map[string]struct{}),
	}
}

// ShouldApply reports whether the request must be executed. Requests without
// an id are always executed.
func (g *IdempotencyGuard) ShouldApply(requestID string) bool {
	if requestID == "" {
		return true
	}
	if _, ok := g.applied[requestID]; ok {
		return false
	}
	_, busy := g.inflight[requestID]
	return !busy
}

// Prior returns the reply recorded for an applied request. A request that is
// still running gets an empty reply marked as duplicate.
func (g *IdempotencyGuard) Prior(requestID string) Reply {
	reply := Reply{"duplicate": true}
	for k, v := range g.applied[requestID] {
		reply[k] = v
	}
	return reply
}

// Record marks a request as applied. It is only called on the branch that
// actually mutated the room.
func (g *IdempotencyGuard) Record(requestID string, reply Reply) {
	if requestID == "" {
		return
	}
	delete(g.inflight, requestID)
	stored := Reply{}
	for k, v := range reply {
		stored[k] = v
	}
	g.applied[requestID] = stored
}

// Begin marks a request whose mutation waits on external I/O.
func (g *IdempotencyGuard) Begin(requestID string) {
	if requestID != "" {
		g.inflight[requestID] = struct{}{}
	}
}

// Abort forgets an in-flight request that ended up not applying.
func (g *IdempotencyGuard) Abort(requestID string) {
	delete(g.inflight, requestID)
}

// Len is the number of applied requests.
func (g *IdempotencyGuard) Len() int { return len(g.applied) }

// Reset drops every record.
func (g *IdempotencyGuard) Reset() {
	g.applied = make(map[string]Reply)
	g.inflight = make(map[string]struct{})
}
