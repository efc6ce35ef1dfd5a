package models

import "time"

// TournamentStatus представляет статусы турнира.
type TournamentStatus string

const (
	StatusSeeding    TournamentStatus = "seeding"
	StatusInProgress TournamentStatus = "in_progress"
	StatusCompleted  TournamentStatus = "completed"
)

// Tournament представляет турнир Sweet Sixteen с двойным выбыванием.
type Tournament struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Status        TournamentStatus  `json:"status"`
	Size          int               `json:"size"`
	Seeds         []string          `json:"seeds"`
	Matches       map[string]*Match `json:"matches"`
	ChampionID    string            `json:"champion_id,omitempty"`
	RunnerUpID    string            `json:"runner_up_id,omitempty"`
	MatchesPlayed int               `json:"matches_played"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// Match возвращает матч по id или nil.
func (t *Tournament) Match(id string) *Match {
	if t == nil || t.Matches == nil {
		return nil
	}
	return t.Matches[id]
}

// IsActive сообщает, остались ли в турнире несыгранные матчи.
func (t *Tournament) IsActive() bool {
	return t.Status != StatusCompleted
}

// References сообщает, посеян ли itemID в незавершенный турнир.
func (t *Tournament) References(itemID string) bool {
	if !t.IsActive() {
		return false
	}
	for _, seed := range t.Seeds {
		if seed == itemID {
			return true
		}
	}
	return false
}
