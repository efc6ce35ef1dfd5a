// Package rating implements the ELO update used for every comparison.
// Functions here are pure: no state, no I/O.
package rating

import "math"

// Side identifies the winner of a two-item match.
type Side int

const (
	SideA Side = iota
	SideB
)

// scale is the rating gap at which the favourite is expected to win ten times as often.
const scale = 400.0

// precision is the number of decimals ratings and deltas are stored with.
const precision = 2

// Result holds the outcome of one update.
type Result struct {
	NewA   float64
	NewB   float64
	DeltaA float64
	DeltaB float64
}

// ExpectedScore returns the probability that an item rated ratingA beats one rated ratingB.
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/scale))
}

// Delta returns the unrounded rating change of A for the given actual score (1 win, 0 loss).
func Delta(ratingA, ratingB, actualA, kFactor float64) float64 {
	return kFactor * (actualA - ExpectedScore(ratingA, ratingB))
}

// Update computes new ratings after A and B played and winner won.
// B's delta is the negated, already rounded A delta, so stored deltas always sum to zero.
func Update(ratingA, ratingB float64, winner Side, kFactor float64) Result {
	actualA := 0.0
	if winner == SideA {
		actualA = 1.0
	}

	deltaA := Round(Delta(ratingA, ratingB, actualA, kFactor))
	deltaB := -deltaA

	return Result{
		NewA:   Round(ratingA + deltaA),
		NewB:   Round(ratingB + deltaB),
		DeltaA: deltaA,
		DeltaB: deltaB,
	}
}

// Round rounds v to the storage precision.
func Round(v float64) float64 {
	p := math.Pow(10, precision)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero in documents
	}
	return r
}

// Valid reports whether r can be used as a rating.
func Valid(r float64) bool {
	return !math.IsNaN(r) && !math.IsInf(r, 0)
}
