package brackets

import (
	"math/bits"
	"sort"
)

// TournamentSize is the number of items in a Sweet Sixteen tournament.
const TournamentSize = 16

// SeedEntry is an item offered for seeding together with its current rating.
type SeedEntry struct {
	ItemID string
	Rating float64
}

// SeedItems orders entries by rating, highest first. Equal ratings keep their input order.
func SeedItems(entries []SeedEntry) []string {
	sorted := make([]SeedEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rating > sorted[j].Rating })

	seeds := make([]string, len(sorted))
	for i, e := range sorted {
		seeds[i] = e.ItemID
	}
	return seeds
}

// SeedOrder returns 1-based seed numbers in bracket-line order for a bracket of size lines.
// Consecutive pairs are the round-1 matches; for 16 lines that is
// 1-16, 8-9, 4-13, 5-12, 2-15, 7-10, 3-14, 6-11.
func SeedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		n := len(order) * 2
		next := make([]int, 0, n)
		for _, s := range order {
			next = append(next, s, n+1-s)
		}
		order = next
	}
	return order
}

func isPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// log2 of a power of two.
func log2(n int) int {
	return bits.TrailingZeros(uint(n))
}
