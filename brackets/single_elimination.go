package brackets

import (
	"fmt"

	"github.com/Dosada05/elo-arena/models"
)

// buildWinnersBracket creates the single-elimination half of the bracket and returns its
// rounds. Round 1 is filled from the seeds in SeedOrder; lines without a seed become byes.
// Later rounds halve the match count until one match (the winners-bracket final) remains.
func buildWinnersBracket(b *builder, params GenerateBracketParams) ([][]*models.Match, error) {
	n := len(params.Seeds)
	if !isPowerOfTwo(params.Size) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBracketSize, params.Size)
	}
	if n < 2 || n > params.Size {
		return nil, fmt.Errorf("cannot seed %d items into a bracket of %d lines", n, params.Size)
	}

	numRounds := log2(params.Size)
	rounds := make([][]*models.Match, 0, numRounds)

	order := SeedOrder(params.Size)
	first := make([]*models.Match, 0, params.Size/2)
	for i := 0; i < len(order); i += 2 {
		m := b.add(models.BracketWinners, 1, i/2+1)
		m.Slots[0] = seedSlot(params.Seeds, order[i])
		m.Slots[1] = seedSlot(params.Seeds, order[i+1])
		first = append(first, m)
	}
	rounds = append(rounds, first)

	for r := 2; r <= numRounds; r++ {
		prev := rounds[len(rounds)-1]
		current := make([]*models.Match, 0, len(prev)/2)
		for i := 0; i < len(prev); i += 2 {
			m := b.add(models.BracketWinners, r, i/2+1)
			b.feedWinner(prev[i], m, 0)
			b.feedWinner(prev[i+1], m, 1)
			current = append(current, m)
		}
		rounds = append(rounds, current)
	}

	return rounds, nil
}

func seedSlot(seeds []string, seed int) models.Slot {
	if seed > len(seeds) {
		return models.Slot{Kind: models.SlotBye, IsBye: true}
	}
	return models.Slot{Kind: models.SlotItem, ItemID: seeds[seed-1]}
}
