package models

import "time"

const (
	DefaultKFactor = 32.0
	DefaultRating  = 1000.0
)

// ProjectSettings holds the rating parameters of a project.
type ProjectSettings struct {
	KFactor       float64 `json:"k_factor"`
	DefaultRating float64 `json:"default_rating"`
}

// Project is the persisted document: one project owns its items, battles and tournaments.
type Project struct {
	ID          string                 `json:"id"`
	OwnerID     string                 `json:"owner_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Settings    ProjectSettings        `json:"settings"`
	Items       map[string]*Item       `json:"items"`
	Battles     []Battle               `json:"battles"`
	Tournaments map[string]*Tournament `json:"tournaments"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Normalize fills missing collections and default settings after a document is loaded.
func (p *Project) Normalize() {
	if p.Items == nil {
		p.Items = make(map[string]*Item)
	}
	if p.Battles == nil {
		p.Battles = []Battle{}
	}
	if p.Tournaments == nil {
		p.Tournaments = make(map[string]*Tournament)
	}
	if p.Settings.KFactor <= 0 {
		p.Settings.KFactor = DefaultKFactor
	}
	if p.Settings.DefaultRating == 0 {
		p.Settings.DefaultRating = DefaultRating
	}
}

// ActiveTournament returns the tournament still in progress, if any.
func (p *Project) ActiveTournament() *Tournament {
	for _, t := range p.Tournaments {
		if t.IsActive() {
			return t
		}
	}
	return nil
}

// ProjectSummary is the list view of a project.
type ProjectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	TotalItems   int       `json:"total_items"`
	TotalBattles int       `json:"total_battles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		TotalItems:   len(p.Items),
		TotalBattles: len(p.Battles),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
