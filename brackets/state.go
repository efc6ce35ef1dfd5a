package brackets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/elo-arena/models"
)

// Outcome describes what a recorded result changed in the bracket.
type Outcome struct {
	MatchID      string
	WinnerID     string
	LoserID      string
	ResetCreated bool
	Completed    bool
	ChampionID   string
	// Matches decided automatically because one side was a bye.
	AutoAdvanced []string
}

// NewTournament seeds exactly TournamentSize items by rating and builds an IN_PROGRESS bracket.
func NewTournament(id, name string, entries []SeedEntry, now time.Time) (*models.Tournament, error) {
	if len(entries) != TournamentSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeedCount, len(entries))
	}
	return newBracket(id, name, TournamentSize, entries, now)
}

func newBracket(id, name string, size int, entries []SeedEntry, now time.Time) (*models.Tournament, error) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.ItemID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSeed, e.ItemID)
		}
		seen[e.ItemID] = true
	}

	t := &models.Tournament{
		ID:        id,
		Name:      name,
		Status:    models.StatusSeeding,
		Size:      size,
		Seeds:     SeedItems(entries),
		CreatedAt: now,
	}

	matches, err := NewDoubleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Size:  size,
		Seeds: t.Seeds,
	})
	if err != nil {
		return nil, err
	}
	t.Matches = matches
	if err := Validate(t); err != nil {
		return nil, err
	}

	t.Status = models.StatusInProgress
	resolveByes(t, now)
	return t, nil
}

// Playable reports whether m can be played now: not completed and both slots hold items.
func Playable(m *models.Match) bool {
	if m == nil || m.Completed {
		return false
	}
	return m.Slots[0].ItemID != "" && m.Slots[1].ItemID != ""
}

// PlayableMatches returns every playable match ordered by (stage, order).
func PlayableMatches(t *models.Tournament) []*models.Match {
	if t == nil || t.Status != models.StatusInProgress {
		return nil
	}
	var ready []*models.Match
	for _, m := range t.Matches {
		if Playable(m) {
			ready = append(ready, m)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Stage != ready[j].Stage {
			return ready[i].Stage < ready[j].Stage
		}
		if ready[i].Order != ready[j].Order {
			return ready[i].Order < ready[j].Order
		}
		return ready[i].ID < ready[j].ID
	})
	return ready
}

// NextMatch returns the first playable match in play order, or nil when nothing is playable.
func NextMatch(t *models.Tournament) *models.Match {
	ready := PlayableMatches(t)
	if len(ready) == 0 {
		return nil
	}
	return ready[0]
}

// CheckResult validates a result submission without changing the tournament.
func CheckResult(t *models.Tournament, matchID, winnerID string) (*models.Match, string, error) {
	if t.Status == models.StatusCompleted {
		return nil, "", ErrTournamentAlreadyCompleted
	}
	m := t.Match(matchID)
	if m == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	if m.Completed {
		return nil, "", fmt.Errorf("%w: %s", ErrMatchAlreadyCompleted, matchID)
	}
	if !Playable(m) {
		return nil, "", fmt.Errorf("%w: %s", ErrNoPlayableMatch, matchID)
	}

	a, b := m.ItemIDs()
	switch winnerID {
	case a:
		return m, b, nil
	case b:
		return m, a, nil
	default:
		return nil, "", fmt.Errorf("%w: %s in match %s", ErrInvalidWinner, winnerID, matchID)
	}
}

// RecordResult completes matchID with winnerID and advances the bracket.
// battleID links the match to the battle record that carried the rating update.
func RecordResult(t *models.Tournament, matchID, winnerID, battleID string, now time.Time) (*Outcome, error) {
	m, loserID, err := CheckResult(t, matchID, winnerID)
	if err != nil {
		return nil, err
	}

	winnerSlot := 0
	if m.Slots[1].ItemID == winnerID {
		winnerSlot = 1
	}
	m.BattleID = battleID
	t.MatchesPlayed++

	out := &Outcome{MatchID: m.ID, WinnerID: winnerID, LoserID: loserID}
	complete(t, m, winnerSlot, now, out)
	out.AutoAdvanced = resolveByes(t, now)

	out.Completed = t.Status == models.StatusCompleted
	out.ChampionID = t.ChampionID
	return out, nil
}

// complete marks m decided for the participant in winnerSlot and moves both participants on.
func complete(t *models.Tournament, m *models.Match, winnerSlot int, now time.Time, out *Outcome) {
	winner := m.Slots[winnerSlot]
	loser := m.Slots[1-winnerSlot]
	m.WinnerID = winner.ItemID
	m.LoserID = loser.ItemID
	m.Completed = true

	switch m.Bracket {
	case models.BracketGrandFinal:
		// slot 0 is the winners-bracket champion, who enters without a loss
		if winnerSlot == 0 || loser.IsBye {
			finish(t, winner.ItemID, loser.ItemID, now)
			return
		}
		createReset(t, m)
		if out != nil {
			out.ResetCreated = true
		}
	case models.BracketReset:
		finish(t, winner.ItemID, loser.ItemID, now)
	default:
		place(t, m.WinnerTo, winner)
		place(t, m.LoserTo, loser)
	}
}

// createReset adds the second final between the same two participants. The winners-bracket
// champion, now with one loss, keeps slot 0.
func createReset(t *models.Tournament, gf *models.Match) {
	reset := &models.Match{
		ID:      matchID(models.BracketReset, 1, 1),
		Bracket: models.BracketReset,
		Round:   1,
		Order:   1,
		Stage:   gf.Stage + 1,
	}
	reset.Slots[0] = models.Slot{Kind: models.SlotLoserOf, SourceMatchID: gf.ID, ItemID: gf.LoserID}
	reset.Slots[1] = models.Slot{Kind: models.SlotWinnerOf, SourceMatchID: gf.ID, ItemID: gf.WinnerID}
	gf.LoserTo = &models.Destination{MatchID: reset.ID, Slot: 0}
	gf.WinnerTo = &models.Destination{MatchID: reset.ID, Slot: 1}
	t.Matches[reset.ID] = reset
}

func place(t *models.Tournament, dst *models.Destination, occupant models.Slot) {
	if dst == nil {
		return // eliminated
	}
	target := t.Match(dst.MatchID)
	if target == nil {
		return
	}
	slot := &target.Slots[dst.Slot]
	if occupant.IsBye {
		slot.IsBye = true
		return
	}
	slot.ItemID = occupant.ItemID
}

func finish(t *models.Tournament, championID, runnerUpID string, now time.Time) {
	t.Status = models.StatusCompleted
	t.ChampionID = championID
	t.RunnerUpID = runnerUpID
	completedAt := now
	t.CompletedAt = &completedAt
}

// resolveByes decides every match that has both slots resolved and at least one bye.
// The real participant (if any) advances and the bye travels the loser path. No rating
// change and no battle record is produced. Returns the ids of the decided matches.
func resolveByes(t *models.Tournament, now time.Time) []string {
	var decided []string
	for {
		var next *models.Match
		for _, m := range t.Matches {
			if m.Completed || !m.Slots[0].Resolved() || !m.Slots[1].Resolved() {
				continue
			}
			if !m.Slots[0].IsBye && !m.Slots[1].IsBye {
				continue
			}
			if next == nil || m.Stage < next.Stage || (m.Stage == next.Stage && m.ID < next.ID) {
				next = m
			}
		}
		if next == nil || t.Status == models.StatusCompleted {
			return decided
		}
		winnerSlot := 0
		if next.Slots[0].IsBye && !next.Slots[1].IsBye {
			winnerSlot = 1
		}
		complete(t, next, winnerSlot, now, nil)
		decided = append(decided, next.ID)
	}
}

// Validate checks the structural invariants of the bracket: destinations and slot sources
// agree, every edge leads to a later stage, winners-bracket losers drop into the losers
// bracket, losers-bracket losers are eliminated, and the match count matches the topology.
func Validate(t *models.Tournament) error {
	counts := map[models.BracketType]int{}
	for id, m := range t.Matches {
		if id != m.ID {
			return fmt.Errorf("%w: match stored under %s has id %s", ErrInvalidTopology, id, m.ID)
		}
		counts[m.Bracket]++

		for _, edge := range []struct {
			dst  *models.Destination
			kind models.SlotKind
		}{{m.WinnerTo, models.SlotWinnerOf}, {m.LoserTo, models.SlotLoserOf}} {
			if edge.dst == nil {
				continue
			}
			target := t.Match(edge.dst.MatchID)
			if target == nil {
				return fmt.Errorf("%w: %s points to missing match %s", ErrInvalidTopology, m.ID, edge.dst.MatchID)
			}
			if target.Stage <= m.Stage {
				return fmt.Errorf("%w: %s (stage %d) feeds %s (stage %d)", ErrInvalidTopology, m.ID, m.Stage, target.ID, target.Stage)
			}
			if edge.dst.Slot < 0 || edge.dst.Slot > 1 {
				return fmt.Errorf("%w: %s feeds slot %d", ErrInvalidTopology, m.ID, edge.dst.Slot)
			}
			slot := target.Slots[edge.dst.Slot]
			if slot.Kind != edge.kind || slot.SourceMatchID != m.ID {
				return fmt.Errorf("%w: %s slot %d is not fed by %s", ErrInvalidTopology, target.ID, edge.dst.Slot, m.ID)
			}
		}

		for i, slot := range m.Slots {
			if slot.Kind != models.SlotWinnerOf && slot.Kind != models.SlotLoserOf {
				continue
			}
			src := t.Match(slot.SourceMatchID)
			if src == nil {
				return fmt.Errorf("%w: %s slot %d references missing match %s", ErrInvalidTopology, m.ID, i, slot.SourceMatchID)
			}
			dst := src.WinnerTo
			if slot.Kind == models.SlotLoserOf {
				dst = src.LoserTo
			}
			if dst == nil || dst.MatchID != m.ID || dst.Slot != i {
				return fmt.Errorf("%w: %s does not feed %s slot %d", ErrInvalidTopology, src.ID, m.ID, i)
			}
		}

		switch m.Bracket {
		case models.BracketWinners:
			if m.LoserTo == nil {
				return fmt.Errorf("%w: winners match %s eliminates on first loss", ErrInvalidTopology, m.ID)
			}
		case models.BracketLosers:
			if m.LoserTo != nil {
				return fmt.Errorf("%w: losers match %s does not eliminate", ErrInvalidTopology, m.ID)
			}
		}
	}

	if counts[models.BracketWinners] != t.Size-1 {
		return fmt.Errorf("%w: %d winners matches for %d lines", ErrInvalidTopology, counts[models.BracketWinners], t.Size)
	}
	if counts[models.BracketGrandFinal] != 1 {
		return fmt.Errorf("%w: %d grand finals", ErrInvalidTopology, counts[models.BracketGrandFinal])
	}
	total := counts[models.BracketWinners] + counts[models.BracketLosers] + counts[models.BracketGrandFinal]
	if total != ExpectedMatchCount(t.Size) {
		return fmt.Errorf("%w: %d matches, topology requires %d", ErrInvalidTopology, total, ExpectedMatchCount(t.Size))
	}
	if counts[models.BracketReset] > 1 {
		return fmt.Errorf("%w: %d reset matches", ErrInvalidTopology, counts[models.BracketReset])
	}
	return nil
}
