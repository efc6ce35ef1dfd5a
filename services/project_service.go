package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dosada05/elo-arena/models"
	"github.com/Dosada05/elo-arena/rating"
)

type CreateProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	KFactor     *float64 `json:"k_factor,omitempty"`
	// DefaultRating is the rating new items start with.
	DefaultRating *float64 `json:"default_rating,omitempty"`
}

type UpdateProjectInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	KFactor     *float64 `json:"k_factor,omitempty"`
}

type AddItemsInput struct {
	Names         []string `json:"names"`
	InitialRating *float64 `json:"initial_rating,omitempty"`
}

// AddItemsResult reports which names were added and which were skipped as duplicates.
type AddItemsResult struct {
	Added   []*models.Item `json:"added"`
	Skipped []string       `json:"skipped"`
}

type ProjectService interface {
	CreateProject(ctx context.Context, ownerID string, input CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, ownerID, projectID string) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]models.ProjectSummary, error)
	UpdateProject(ctx context.Context, ownerID, projectID string, input UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, ownerID, projectID string) error

	AddItems(ctx context.Context, ownerID, projectID string, input AddItemsInput) (*AddItemsResult, error)
	RenameItem(ctx context.Context, ownerID, projectID, itemID, name string) (*models.Item, error)
	RemoveItem(ctx context.Context, ownerID, projectID, itemID string) error
	ListItems(ctx context.Context, ownerID, projectID string) ([]*models.Item, error)
	GetItem(ctx context.Context, ownerID, projectID, itemID string) (*models.RankedItem, error)

	GetRankings(ctx context.Context, ownerID, projectID string, limit, offset int) ([]models.RankedItem, error)
	GetHistory(ctx context.Context, ownerID, projectID string, limit, offset int) ([]models.Battle, error)
	GetStats(ctx context.Context, ownerID, projectID string) (*models.ProjectStats, error)
}

type projectService struct {
	store    ProjectStore
	defaults models.ProjectSettings
	logger   *slog.Logger
}

func NewProjectService(store ProjectStore, defaults models.ProjectSettings, logger *slog.Logger) ProjectService {
	if !validKFactor(defaults.KFactor) {
		defaults.KFactor = models.DefaultKFactor
	}
	if defaults.DefaultRating == 0 || !rating.Valid(defaults.DefaultRating) {
		defaults.DefaultRating = models.DefaultRating
	}
	return &projectService{
		store:    store,
		defaults: defaults,
		logger:   orDefaultLogger(logger),
	}
}

func (s *projectService) CreateProject(ctx context.Context, ownerID string, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidationFailed)
	}

	settings := s.defaults
	if input.KFactor != nil {
		if !validKFactor(*input.KFactor) {
			return nil, fmt.Errorf("%w: k-factor must be a positive number", ErrValidationFailed)
		}
		settings.KFactor = *input.KFactor
	}
	if input.DefaultRating != nil {
		if !rating.Valid(*input.DefaultRating) {
			return nil, fmt.Errorf("%w: default rating must be finite", ErrValidationFailed)
		}
		settings.DefaultRating = *input.DefaultRating
	}

	now := utcNow()
	p := &models.Project{
		ID:          newID(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Settings:    settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("project created", slog.String("project_id", p.ID), slog.String("owner_id", ownerID))
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, ownerID, projectID string) (*models.Project, error) {
	return readOwned(ctx, s.store, ownerID, projectID)
}

func (s *projectService) ListProjects(ctx context.Context, ownerID string) ([]models.ProjectSummary, error) {
	projects, err := s.store.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	// свежие проекты первыми
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].UpdatedAt.Equal(projects[j].UpdatedAt) {
			return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
		}
		return projects[i].ID < projects[j].ID
	})

	summaries := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, p.Summary())
	}
	return summaries, nil
}

func (s *projectService) UpdateProject(ctx context.Context, ownerID, projectID string, input UpdateProjectInput) (*models.Project, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: project name cannot be empty", ErrValidationFailed)
	}
	if input.KFactor != nil && !validKFactor(*input.KFactor) {
		return nil, fmt.Errorf("%w: k-factor must be a positive number", ErrValidationFailed)
	}

	var updated *models.Project
	err := s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}
		if input.Name != nil {
			p.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			p.Description = strings.TrimSpace(*input.Description)
		}
		if input.KFactor != nil {
			p.Settings.KFactor = *input.KFactor
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *projectService) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	if _, err := readOwned(ctx, s.store, ownerID, projectID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.logger.Info("project deleted", slog.String("project_id", projectID))
	return nil
}

// AddItems creates one item per name. Names are trimmed; blank names and names already
// present in the project (case-insensitive) are skipped.
func (s *projectService) AddItems(ctx context.Context, ownerID, projectID string, input AddItemsInput) (*AddItemsResult, error) {
	if len(input.Names) == 0 {
		return nil, fmt.Errorf("%w: at least one item name is required", ErrValidationFailed)
	}
	if input.InitialRating != nil && !rating.Valid(*input.InitialRating) {
		return nil, fmt.Errorf("%w: initial rating must be finite", ErrValidationFailed)
	}

	result := &AddItemsResult{Added: []*models.Item{}, Skipped: []string{}}
	err := s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}

		existing := make(map[string]bool, len(p.Items))
		for _, item := range p.Items {
			existing[normalizeName(item.Name)] = true
		}

		startRating := p.Settings.DefaultRating
		if input.InitialRating != nil {
			startRating = *input.InitialRating
		}

		now := utcNow()
		for _, raw := range input.Names {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			key := normalizeName(name)
			if existing[key] {
				result.Skipped = append(result.Skipped, name)
				continue
			}
			existing[key] = true

			item := &models.Item{
				ID:        newID(),
				Name:      name,
				Rating:    startRating,
				CreatedAt: now,
				RatingHistory: []models.RatingSnapshot{
					{Timestamp: now, Rating: startRating, Delta: 0},
				},
			}
			p.Items[item.ID] = item
			result.Added = append(result.Added, item)
		}

		if len(result.Added) == 0 && len(result.Skipped) == 0 {
			return fmt.Errorf("%w: item names are blank", ErrValidationFailed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("items added",
		slog.String("project_id", projectID),
		slog.Int("added", len(result.Added)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *projectService) RenameItem(ctx context.Context, ownerID, projectID, itemID, name string) (*models.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrValidationFailed)
	}

	var renamed *models.Item
	err := s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}
		item, ok := p.Items[itemID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		for id, other := range p.Items {
			if id != itemID && normalizeName(other.Name) == normalizeName(name) {
				return fmt.Errorf("%w: %q", ErrDuplicateItems, name)
			}
		}
		item.Name = name
		renamed = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// RemoveItem deletes an item. Items seeded into an unfinished tournament cannot be removed.
// Battle records keep the names the item had when they were played.
func (s *projectService) RemoveItem(ctx context.Context, ownerID, projectID, itemID string) error {
	return s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}
		if _, ok := p.Items[itemID]; !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		for _, t := range p.Tournaments {
			if t.References(itemID) {
				return fmt.Errorf("%w: %s is seeded in tournament %s", ErrItemInUse, itemID, t.ID)
			}
		}
		delete(p.Items, itemID)
		return nil
	})
}

// ListItems returns all items ordered by name.
func (s *projectService) ListItems(ctx context.Context, ownerID, projectID string) ([]*models.Item, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]*models.Item, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		ni, nj := normalizeName(items[i].Name), normalizeName(items[j].Name)
		if ni != nj {
			return ni < nj
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// GetItem returns one item with its current rank. The item carries its full rating history.
func (s *projectService) GetItem(ctx context.Context, ownerID, projectID, itemID string) (*models.RankedItem, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if _, ok := p.Items[itemID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	for _, r := range rankItems(p) {
		if r.ID == itemID {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

func (s *projectService) GetRankings(ctx context.Context, ownerID, projectID string, limit, offset int) ([]models.RankedItem, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	ranked := rankItems(p)
	start, end := paginate(len(ranked), limit, offset)
	return ranked[start:end], nil
}

// GetHistory returns battles most recent first.
func (s *projectService) GetHistory(ctx context.Context, ownerID, projectID string, limit, offset int) ([]models.Battle, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	n := len(p.Battles)
	start, end := paginate(n, limit, offset)
	history := make([]models.Battle, 0, end-start)
	for i := start; i < end; i++ {
		history = append(history, p.Battles[n-1-i])
	}
	return history, nil
}

func (s *projectService) GetStats(ctx context.Context, ownerID, projectID string) (*models.ProjectStats, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	return computeStats(p), nil
}

// rankItems orders items by rating, highest first. Ties are broken by name so the
// order is stable between calls.
func rankItems(p *models.Project) []models.RankedItem {
	items := make([]*models.Item, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Rating != items[j].Rating {
			return items[i].Rating > items[j].Rating
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})

	ranked := make([]models.RankedItem, len(items))
	for i, item := range items {
		ranked[i] = models.RankedItem{Rank: i + 1, Item: item}
	}
	return ranked
}

func computeStats(p *models.Project) *models.ProjectStats {
	stats := &models.ProjectStats{
		TotalItems:       len(p.Items),
		TotalBattles:     len(p.Battles),
		TotalTournaments: len(p.Tournaments),
	}
	for _, b := range p.Battles {
		if b.Source == models.SourceFreeform {
			stats.FreeformBattles++
		} else {
			stats.TournamentBattles++
		}
	}
	for _, t := range p.Tournaments {
		if t.Status == models.StatusCompleted {
			stats.CompletedTournaments++
		}
	}

	ranked := rankItems(p)
	if len(ranked) == 0 {
		return stats
	}
	total := 0.0
	for _, r := range ranked {
		total += r.Rating
		if stats.MostComparedItem == nil || r.MatchesPlayed > stats.MostComparedItem.MatchesPlayed {
			stats.MostComparedItem = r.Item
		}
	}
	stats.TopItem = ranked[0].Item
	stats.AverageRating = rating.Round(total / float64(len(ranked)))
	return stats
}
