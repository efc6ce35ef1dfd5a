package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/models"
)

// ItemView is a bracket participant as shown to clients.
type ItemView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
	Seed   int     `json:"seed"`
}

type MatchView struct {
	MatchID      string             `json:"match_id"`
	Bracket      models.BracketType `json:"bracket"`
	Round        int                `json:"round"`
	OrderInRound int                `json:"order_in_round"`
	Item1        *ItemView          `json:"item1,omitempty"`
	Item2        *ItemView          `json:"item2,omitempty"`
	// Label1/Label2 describe unresolved slots, e.g. "Winner of W1-1".
	Label1    string `json:"label1,omitempty"`
	Label2    string `json:"label2,omitempty"`
	WinnerID  string `json:"winner_id,omitempty"`
	Completed bool   `json:"completed"`
	Playable  bool   `json:"playable"`
	BattleID  string `json:"battle_id,omitempty"`
}

type RoundView struct {
	Round   int         `json:"round"`
	Matches []MatchView `json:"matches"`
}

type BracketView struct {
	TournamentID  string                  `json:"tournament_id"`
	Name          string                  `json:"name"`
	Status        models.TournamentStatus `json:"status"`
	Winners       []RoundView             `json:"winners"`
	Losers        []RoundView             `json:"losers"`
	GrandFinal    *MatchView              `json:"grand_final,omitempty"`
	Reset         *MatchView              `json:"reset,omitempty"`
	ChampionID    string                  `json:"champion_id,omitempty"`
	ChampionName  string                  `json:"champion_name,omitempty"`
	RunnerUpID    string                  `json:"runner_up_id,omitempty"`
	RunnerUpName  string                  `json:"runner_up_name,omitempty"`
	MatchesPlayed int                     `json:"matches_played"`
	TotalMatches  int                     `json:"total_matches"`
	NextMatchID   string                  `json:"next_match_id,omitempty"`
}

// TournamentSummary is the list view of a tournament.
type TournamentSummary struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Status        models.TournamentStatus `json:"status"`
	ChampionID    string                  `json:"champion_id,omitempty"`
	ChampionName  string                  `json:"champion_name,omitempty"`
	MatchesPlayed int                     `json:"matches_played"`
	TotalMatches  int                     `json:"total_matches"`
	CreatedAt     time.Time               `json:"created_at"`
}

func totalMatches(t *models.Tournament) int {
	total := brackets.ExpectedMatchCount(t.Size)
	if t.Match("RESET") != nil {
		total++
	}
	return total
}

func itemViewsFunc(t *models.Tournament, p *models.Project) map[string]ItemView {
	views := make(map[string]ItemView, len(t.Seeds))
	for i, id := range t.Seeds {
		v := ItemView{ID: id, Name: fmt.Sprintf("Item %s (removed)", id), Seed: i + 1}
		if item, ok := p.Items[id]; ok {
			v.Name = item.Name
			v.Rating = item.Rating
		}
		views[id] = v
	}
	return views
}

func slotLabel(s models.Slot) string {
	switch {
	case s.IsBye:
		return "BYE"
	case s.Kind == models.SlotWinnerOf:
		return "Winner of " + s.SourceMatchID
	case s.Kind == models.SlotLoserOf:
		return "Loser of " + s.SourceMatchID
	default:
		return "TBD"
	}
}

func toMatchViewFunc(m *models.Match, items map[string]ItemView) MatchView {
	mv := MatchView{
		MatchID:      m.ID,
		Bracket:      m.Bracket,
		Round:        m.Round,
		OrderInRound: m.Order,
		WinnerID:     m.WinnerID,
		Completed:    m.Completed,
		Playable:     brackets.Playable(m),
		BattleID:     m.BattleID,
	}
	a, b := m.ItemIDs()
	if a != "" {
		v := items[a]
		mv.Item1 = &v
	} else {
		mv.Label1 = slotLabel(m.Slots[0])
	}
	if b != "" {
		v := items[b]
		mv.Item2 = &v
	} else {
		mv.Label2 = slotLabel(m.Slots[1])
	}
	return mv
}

func groupRounds(matches []*models.Match, items map[string]ItemView) []RoundView {
	byRound := map[int][]*models.Match{}
	for _, m := range matches {
		byRound[m.Round] = append(byRound[m.Round], m)
	}
	rounds := make([]int, 0, len(byRound))
	for r := range byRound {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)

	views := make([]RoundView, 0, len(rounds))
	for _, r := range rounds {
		ms := byRound[r]
		sort.Slice(ms, func(i, j int) bool { return ms[i].Order < ms[j].Order })
		rv := RoundView{Round: r, Matches: make([]MatchView, 0, len(ms))}
		for _, m := range ms {
			rv.Matches = append(rv.Matches, toMatchViewFunc(m, items))
		}
		views = append(views, rv)
	}
	return views
}

func buildBracketView(t *models.Tournament, p *models.Project) *BracketView {
	items := itemViewsFunc(t, p)
	view := &BracketView{
		TournamentID:  t.ID,
		Name:          t.Name,
		Status:        t.Status,
		ChampionID:    t.ChampionID,
		RunnerUpID:    t.RunnerUpID,
		MatchesPlayed: t.MatchesPlayed,
		TotalMatches:  totalMatches(t),
	}
	if t.ChampionID != "" {
		view.ChampionName = items[t.ChampionID].Name
	}
	if t.RunnerUpID != "" {
		view.RunnerUpName = items[t.RunnerUpID].Name
	}
	if next := brackets.NextMatch(t); next != nil {
		view.NextMatchID = next.ID
	}

	var winners, losers []*models.Match
	for _, m := range t.Matches {
		switch m.Bracket {
		case models.BracketWinners:
			winners = append(winners, m)
		case models.BracketLosers:
			losers = append(losers, m)
		case models.BracketGrandFinal:
			mv := toMatchViewFunc(m, items)
			view.GrandFinal = &mv
		case models.BracketReset:
			mv := toMatchViewFunc(m, items)
			view.Reset = &mv
		}
	}
	view.Winners = groupRounds(winners, items)
	view.Losers = groupRounds(losers, items)
	return view
}

func toTournamentSummary(t *models.Tournament, p *models.Project) TournamentSummary {
	s := TournamentSummary{
		ID:            t.ID,
		Name:          t.Name,
		Status:        t.Status,
		ChampionID:    t.ChampionID,
		MatchesPlayed: t.MatchesPlayed,
		TotalMatches:  totalMatches(t),
		CreatedAt:     t.CreatedAt,
	}
	if item, ok := p.Items[t.ChampionID]; ok {
		s.ChampionName = item.Name
	}
	return s
}
