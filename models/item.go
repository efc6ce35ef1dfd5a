package models

import "time"

// RatingSnapshot is one entry of an item's rating history.
type RatingSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Rating    float64   `json:"rating"`
	Delta     float64   `json:"delta"`
}

// Item is one entry of a project, ranked by pairwise comparisons.
type Item struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Rating        float64          `json:"rating"`
	Wins          int              `json:"wins"`
	Losses        int              `json:"losses"`
	MatchesPlayed int              `json:"matches_played"`
	RatingHistory []RatingSnapshot `json:"rating_history"`
	CreatedAt     time.Time        `json:"created_at"`
}

// WinRate returns wins / matches played, 0 for an item that never played.
func (i *Item) WinRate() float64 {
	if i.MatchesPlayed == 0 {
		return 0
	}
	return float64(i.Wins) / float64(i.MatchesPlayed)
}

// RankedItem is an item with its 1-based position in the rankings.
type RankedItem struct {
	Rank int `json:"rank"`
	*Item
}

// ExportEntry is the rating-sorted export shape.
type ExportEntry struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
}
