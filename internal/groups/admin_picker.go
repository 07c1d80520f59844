package groups

import "math/rand/v2"

// AdminPicker chooses the next group admin from the remaining active
// participants. candidates is never empty.
type AdminPicker interface {
	Pick(candidates []int64) int64
}

// RandomPicker picks uniformly at random.
type RandomPicker struct{}

func (RandomPicker) Pick(candidates []int64) int64 {
	return candidates[rand.IntN(len(candidates))]
}

// FirstPicker always picks the first candidate.
type FirstPicker struct{}

func (FirstPicker) Pick(candidates []int64) int64 {
	return candidates[0]
}
