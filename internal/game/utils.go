// internal/game/utils.go
package game

import (
	"math/rand"
	"sort"
	"time"
)

// NewRand returns a generator seeded from the clock. Machines keep their own
// generator so tests can replace it with a fixed seed.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// FilterLog returns the entries the viewer may read, oldest first.
func FilterLog(entries []LogEntry, v Viewer) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Visible(v) {
			out = append(out, e)
		}
	}
	return out
}

// NewLogEntry stamps a log entry with the current time.
func NewLogEntry(round int, kind, text, owner string, data map[string]interface{}) LogEntry {
	return LogEntry{At: time.Now(), Round: round, Kind: kind, Text: text, Owner: owner, Data: data}
}

// TopScorers returns every id holding the maximum score, ordered as in ids.
// Ids without a score count as zero.
func TopScorers(ids []string, scores map[string]int) []string {
	if len(ids) == 0 {
		return nil
	}
	best := scores[ids[0]]
	for _, id := range ids[1:] {
		if scores[id] > best {
			best = scores[id]
		}
	}
	var top []string
	for _, id := range ids {
		if scores[id] == best {
			top = append(top, id)
		}
	}
	return top
}

// SortedKeys returns the keys of a string set in lexical order.
func SortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
