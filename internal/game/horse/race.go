package horse

import (
	"math/rand"
	"sort"
)

// RaceSeconds is the length of the racing phase; every horse runs one
// segment per second.
const RaceSeconds = 5

const (
	minStride = 5
	maxStride = 15
)

// Race is the pre-computed run of one round. Segments[i] holds the per-second
// strides of horse i+1.
type Race struct {
	Segments [][]int `json:"segments"`
}

func newRace(rng *rand.Rand, horses int) *Race {
	race := &Race{Segments: make([][]int, horses)}
	for h := range race.Segments {
		strides := make([]int, RaceSeconds)
		for s := range strides {
			strides[s] = minStride + rng.Intn(maxStride-minStride+1)
		}
		race.Segments[h] = strides
	}
	return race
}

// Positions returns each horse's distance after the given number of seconds.
func (r *Race) Positions(frame int) []int {
	if frame > RaceSeconds {
		frame = RaceSeconds
	}
	pos := make([]int, len(r.Segments))
	for h, strides := range r.Segments {
		for s := 0; s < frame && s < len(strides); s++ {
			pos[h] += strides[s]
		}
	}
	return pos
}

// Ranking orders horse numbers by final distance, descending. Equal distances
// go to the lower horse number.
func (r *Race) Ranking() []int {
	return rankByDistance(r.Positions(RaceSeconds))
}

func rankByDistance(distances []int) []int {
	order := make([]int, len(distances))
	for i := range order {
		order[i] = i + 1
	}
	sort.SliceStable(order, func(a, b int) bool {
		da, db := distances[order[a]-1], distances[order[b]-1]
		if da != db {
			return da > db
		}
		return order[a] < order[b]
	})
	return order
}

// stake is one bet taking part in a settlement.
type stake struct {
	PlayerID string
	Seat     int
	HorseID  int
	Amount   int
}

// settle splits the pot between the stakes on the winning horse in
// proportion to their amounts, rounding down. The integer remainder goes to
// the largest stake, ties by lower seat. It returns nil when nobody backed the
// winner; the pot is then lost.
func settle(pot int, stakes []stake, winner int) map[string]int {
	var backers []stake
	total := 0
	for _, s := range stakes {
		if s.HorseID == winner && s.Amount > 0 {
			backers = append(backers, s)
			total += s.Amount
		}
	}
	if total == 0 {
		return nil
	}

	payouts := make(map[string]int, len(backers))
	paid := 0
	for _, s := range backers {
		share := pot * s.Amount / total
		payouts[s.PlayerID] = share
		paid += share
	}
	if rest := pot - paid; rest > 0 {
		top := backers[0]
		for _, s := range backers[1:] {
			if s.Amount > top.Amount || (s.Amount == top.Amount && s.Seat < top.Seat) {
				top = s
			}
		}
		payouts[top.PlayerID] += rest
	}
	return payouts
}
