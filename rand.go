package synod

import "math/rand"

// RandSource is the randomness a Process draws on: its initial
// proposal (Intn(2)) and its crash coin (Float64). Tests supply a
// seeded source so a run is reproducible; production wires in
// *math/rand.Rand, which already satisfies this interface.
type RandSource interface {
	Intn(n int) int
	Float64() float64
}

// NewRandSource returns a *math/rand.Rand seeded with seed, suitable
// as a Process's RandSource.
func NewRandSource(seed int64) RandSource {
	return rand.New(rand.NewSource(seed))
}
