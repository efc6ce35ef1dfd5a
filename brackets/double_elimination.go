package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/elo-arena/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() BracketGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return "DoubleElimination"
}

// GenerateBracket builds the winners bracket, the losers bracket and the grand final.
// The reset match is not part of the generated topology; it is created only when the
// losers-bracket champion wins the grand final.
//
// Losers bracket for 2^k lines has 2(k-1) rounds:
//   - round 1 pairs the losers of winners round 1;
//   - even round i takes the winners of losers round i-1 against the losers of winners
//     round i/2+1, fed in reverse order so early rematches are pushed apart;
//   - odd round i > 1 pairs the winners of losers round i-1.
func (g *DoubleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (map[string]*models.Match, error) {
	b := newBuilder()

	winners, err := buildWinnersBracket(b, params)
	if err != nil {
		return nil, err
	}

	lbRounds := LosersRounds(params.Size)
	losers := make([][]*models.Match, 0, lbRounds)
	for i := 1; i <= lbRounds; i++ {
		count := losersRoundMatches(params.Size, i)
		round := make([]*models.Match, count)
		for m := 0; m < count; m++ {
			round[m] = b.add(models.BracketLosers, i, m+1)
		}

		switch {
		case i == 1:
			for w, src := range winners[0] {
				b.feedLoser(src, round[w/2], w%2)
			}
		case i%2 == 0:
			prev := losers[i-2]
			dropping := winners[i/2]
			if len(prev) != count || len(dropping) != count {
				return nil, fmt.Errorf("%w: losers round %d expects %d entrants from each side", ErrInvalidTopology, i, count)
			}
			for m := 0; m < count; m++ {
				b.feedWinner(prev[m], round[m], 0)
				b.feedLoser(dropping[count-1-m], round[m], 1)
			}
		default:
			prev := losers[i-2]
			for m, src := range prev {
				b.feedWinner(src, round[m/2], m%2)
			}
		}
		losers = append(losers, round)
	}

	gf := b.add(models.BracketGrandFinal, 1, 1)
	wbFinal := winners[len(winners)-1][0]
	b.feedWinner(wbFinal, gf, 0)
	if lbRounds == 0 {
		// two-line bracket: the only winners match feeds both finalists
		b.feedLoser(wbFinal, gf, 1)
	} else {
		b.feedWinner(losers[lbRounds-1][0], gf, 1)
	}

	assignStages(b.matches, params.Size)
	return b.matches, nil
}

// LosersRounds returns the number of losers-bracket rounds for a bracket of size lines.
func LosersRounds(size int) int {
	if size < 4 {
		return 0
	}
	return 2 * (log2(size) - 1)
}

// losersRoundMatches returns the match count of 1-based losers round i: size / 2^(ceil(i/2)+1).
func losersRoundMatches(size, i int) int {
	return size >> ((i+1)/2 + 1)
}

// ExpectedMatchCount is the number of matches of a complete bracket without the reset
// match. Every entrant except the champion is eliminated by its second loss and the
// champion of a bracket decided in the grand final has none, so a bracket of size
// lines needs exactly 2*(size-1) matches.
func ExpectedMatchCount(size int) int {
	return 2 * (size - 1)
}

// PlayOrder lists the (bracket, round) pairs in the order they become playable:
// W1, L1, then for every later winners round r: W r, L(2r-2), L(2r-1); then GF and RESET.
func PlayOrder(size int) []RoundKey {
	lbRounds := LosersRounds(size)
	order := []RoundKey{{models.BracketWinners, 1}}
	if lbRounds > 0 {
		order = append(order, RoundKey{models.BracketLosers, 1})
	}
	for r := 2; r <= log2(size); r++ {
		order = append(order, RoundKey{models.BracketWinners, r})
		for _, l := range []int{2*r - 2, 2*r - 1} {
			if l <= lbRounds {
				order = append(order, RoundKey{models.BracketLosers, l})
			}
		}
	}
	return append(order,
		RoundKey{models.BracketGrandFinal, 1},
		RoundKey{models.BracketReset, 1},
	)
}

// RoundKey identifies a round of one bracket.
type RoundKey struct {
	Bracket models.BracketType
	Round   int
}

func assignStages(matches map[string]*models.Match, size int) {
	stages := stageIndex(size)
	for _, m := range matches {
		m.Stage = stages[RoundKey{m.Bracket, m.Round}]
	}
}

func stageIndex(size int) map[RoundKey]int {
	stages := make(map[RoundKey]int)
	for i, key := range PlayOrder(size) {
		stages[key] = i + 1
	}
	return stages
}
