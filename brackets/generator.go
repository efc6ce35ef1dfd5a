package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/elo-arena/models"
)

type GenerateBracketParams struct {
	Size  int      // number of bracket lines, a power of two
	Seeds []string // item ids ordered by seed (seed 1 first); len(Seeds) <= Size, missing lines are byes
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (map[string]*models.Match, error)

	GetName() string
}

// builder collects matches into the arena and wires their slots and destinations.
type builder struct {
	matches map[string]*models.Match
}

func newBuilder() *builder {
	return &builder{matches: make(map[string]*models.Match)}
}

func matchID(bracket models.BracketType, round, order int) string {
	switch bracket {
	case models.BracketWinners:
		return fmt.Sprintf("W%d-%d", round, order)
	case models.BracketLosers:
		return fmt.Sprintf("L%d-%d", round, order)
	case models.BracketGrandFinal:
		return "GF"
	default:
		return "RESET"
	}
}

func (b *builder) add(bracket models.BracketType, round, order int) *models.Match {
	m := &models.Match{
		ID:      matchID(bracket, round, order),
		Bracket: bracket,
		Round:   round,
		Order:   order,
	}
	b.matches[m.ID] = m
	return m
}

// feedWinner routes the winner of src into slot of dst.
func (b *builder) feedWinner(src, dst *models.Match, slot int) {
	src.WinnerTo = &models.Destination{MatchID: dst.ID, Slot: slot}
	dst.Slots[slot] = models.Slot{Kind: models.SlotWinnerOf, SourceMatchID: src.ID}
}

// feedLoser routes the loser of src into slot of dst.
func (b *builder) feedLoser(src, dst *models.Match, slot int) {
	src.LoserTo = &models.Destination{MatchID: dst.ID, Slot: slot}
	dst.Slots[slot] = models.Slot{Kind: models.SlotLoserOf, SourceMatchID: src.ID}
}
