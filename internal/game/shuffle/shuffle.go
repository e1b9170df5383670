// Package shuffle provides the uniform permutation used for dealing,
// reshuffling the discard pile and redistributing pooled cards.
package shuffle

import (
	"math/rand"
	"time"
)

// NewSource returns a time-seeded generator for callers that do not inject one.
func NewSource() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Shuffle returns a uniformly permuted copy of in using Fisher–Yates from the
// last index down. The input slice is never modified.
func Shuffle[T any](rng *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Pick returns a uniformly chosen index in [0, n). n must be positive.
func Pick(rng *rand.Rand, n int) int {
	return rng.Intn(n)
}
