package animal

// PlaceID names one of the four feeding grounds.
type PlaceID string

const (
	PlaceA PlaceID = "A"
	PlaceB PlaceID = "B"
	PlaceC PlaceID = "C"
	PlaceD PlaceID = "D"
)

// Places in round-robin order.
var Places = []PlaceID{PlaceA, PlaceB, PlaceC, PlaceD}

var placeWeights = map[PlaceID]int{PlaceA: 3, PlaceB: 2, PlaceC: 2, PlaceD: 1}

func validPlace(p PlaceID) bool {
	_, ok := placeWeights[p]
	return ok
}

// totalFood is max(4, round(0.85 * herbivores)).
func totalFood(herbivores int) int {
	if herbivores < 0 {
		herbivores = 0
	}
	total := (85*herbivores + 50) / 100
	if total < 4 {
		total = 4
	}
	return total
}

// Capacities derives the base capacity of every place from the number of
// living herbivores: one unit per place plus the remaining food split by
// weight, with the integer remainder handed out round-robin from A.
func Capacities(herbivores int) map[PlaceID]int {
	caps := make(map[PlaceID]int, len(Places))
	extra := totalFood(herbivores) - len(Places)
	weightSum := 0
	for _, p := range Places {
		weightSum += placeWeights[p]
	}
	given := 0
	for _, p := range Places {
		share := extra * placeWeights[p] / weightSum
		caps[p] = 1 + share
		given += share
	}
	for i := 0; given < extra; i++ {
		caps[Places[i%len(Places)]]++
		given++
	}
	return caps
}

// adjustCapacity applies a modifier and clamps at zero.
func adjustCapacity(base, modifier int) int {
	if c := base + modifier; c > 0 {
		return c
	}
	return 0
}
