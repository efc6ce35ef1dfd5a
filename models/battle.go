package models

import "time"

// SourceFreeform marks battles submitted outside of a tournament.
const SourceFreeform = "freeform"

// TournamentSource builds the source tag of a battle played inside a tournament.
func TournamentSource(tournamentID string) string {
	return "tournament:" + tournamentID
}

// PairValues holds a value for item A and item B of a battle.
type PairValues struct {
	ItemA float64 `json:"item_a"`
	ItemB float64 `json:"item_b"`
}

// Battle is an immutable record of one completed comparison. Battles are append-only.
type Battle struct {
	ID            string     `json:"id"`
	Timestamp     time.Time  `json:"timestamp"`
	ItemAID       string     `json:"item_a_id"`
	ItemBID       string     `json:"item_b_id"`
	ItemAName     string     `json:"item_a_name"`
	ItemBName     string     `json:"item_b_name"`
	WinnerID      string     `json:"winner_id"`
	RatingsBefore PairValues `json:"ratings_before"`
	RatingsAfter  PairValues `json:"ratings_after"`
	Deltas        PairValues `json:"deltas"`
	Source        string     `json:"source"`
}

// BattleResult is returned to callers of a battle submission.
type BattleResult struct {
	Battle Battle `json:"battle"`
	ItemA  Item   `json:"item_a"`
	ItemB  Item   `json:"item_b"`
}

// ProjectStats aggregates counters over a project.
type ProjectStats struct {
	TotalItems           int     `json:"total_items"`
	TotalBattles         int     `json:"total_battles"`
	FreeformBattles      int     `json:"freeform_battles"`
	TournamentBattles    int     `json:"tournament_battles"`
	TotalTournaments     int     `json:"total_tournaments"`
	CompletedTournaments int     `json:"completed_tournaments"`
	AverageRating        float64 `json:"average_rating"`
	TopItem              *Item   `json:"top_item,omitempty"`
	MostComparedItem     *Item   `json:"most_compared_item,omitempty"`
}
