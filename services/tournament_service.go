package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/models"
)

type CreateTournamentInput struct {
	Name    string   `json:"name"`
	ItemIDs []string `json:"item_ids"`
}

type SubmitMatchInput struct {
	MatchID  string `json:"match_id"`
	WinnerID string `json:"winner_id"`
}

// MatchResult is returned after a tournament match was recorded.
type MatchResult struct {
	Battle       models.BattleResult `json:"battle"`
	MatchID      string              `json:"match_id"`
	ResetCreated bool                `json:"reset_created"`
	Completed    bool                `json:"completed"`
	ChampionID   string              `json:"champion_id,omitempty"`
	// AutoAdvanced lists matches decided by byes as a consequence of this result.
	AutoAdvanced []string     `json:"auto_advanced,omitempty"`
	NextMatch    *MatchView   `json:"next_match,omitempty"`
	Bracket      *BracketView `json:"bracket"`
}

// NextMatchPayload is sent to the tournament room after every recorded match.
type NextMatchPayload struct {
	TournamentID string `json:"tournament_id"`
	MatchID      string `json:"match_id"`
	WinnerID     string `json:"winner_id"`
	NextMatchID  string `json:"next_match_id,omitempty"`
	ResetCreated bool   `json:"reset_created,omitempty"`
	ChampionID   string `json:"champion_id,omitempty"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, ownerID, projectID string, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, ownerID, projectID, tournamentID string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, ownerID, projectID string) ([]TournamentSummary, error)
	GetBracketView(ctx context.Context, ownerID, projectID, tournamentID string) (*BracketView, error)
	GetNextMatch(ctx context.Context, ownerID, projectID, tournamentID string) (*MatchView, error)
	SubmitTournamentMatch(ctx context.Context, ownerID, projectID, tournamentID string, input SubmitMatchInput) (*MatchResult, error)
}

type tournamentService struct {
	store    ProjectStore
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
}

func NewTournamentService(store ProjectStore, notifier Notifier, metrics *Metrics, logger *slog.Logger) TournamentService {
	return &tournamentService{
		store:    store,
		notifier: orNoopNotifier(notifier),
		metrics:  metrics,
		logger:   orDefaultLogger(logger),
	}
}

// CreateTournament seeds the given items by current rating and stores an IN_PROGRESS
// bracket. A project runs at most one tournament at a time.
func (s *tournamentService) CreateTournament(ctx context.Context, ownerID, projectID string, input CreateTournamentInput) (*models.Tournament, error) {
	if len(input.ItemIDs) != brackets.TournamentSize {
		return nil, fmt.Errorf("%w: expected %d items, got %d", brackets.ErrInvalidSeedCount, brackets.TournamentSize, len(input.ItemIDs))
	}

	var created *models.Tournament
	err := s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}
		if active := p.ActiveTournament(); active != nil {
			return fmt.Errorf("%w: %s", ErrActiveTournamentExists, active.ID)
		}

		seen := make(map[string]bool, len(input.ItemIDs))
		entries := make([]brackets.SeedEntry, 0, len(input.ItemIDs))
		for _, id := range input.ItemIDs {
			if seen[id] {
				return fmt.Errorf("%w: %s listed twice", ErrDuplicateItems, id)
			}
			seen[id] = true
			item, ok := p.Items[id]
			if !ok {
				return fmt.Errorf("%w: %s", ErrItemNotFound, id)
			}
			entries = append(entries, brackets.SeedEntry{ItemID: id, Rating: item.Rating})
		}

		name := strings.TrimSpace(input.Name)
		if name == "" {
			name = fmt.Sprintf("Sweet Sixteen #%d", len(p.Tournaments)+1)
		}

		t, err := brackets.NewTournament(newID(), name, entries, utcNow())
		if err != nil {
			return err
		}
		p.Tournaments[t.ID] = t
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.tournamentCreated()
	s.logger.Info("tournament created",
		slog.String("project_id", projectID),
		slog.String("tournament_id", created.ID),
		slog.Int("matches", len(created.Matches)),
	)
	return created, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, ownerID, projectID, tournamentID string) (*models.Tournament, error) {
	_, t, err := s.readTournament(ctx, ownerID, projectID, tournamentID)
	return t, err
}

// ListTournaments returns tournaments newest first.
func (s *tournamentService) ListTournaments(ctx context.Context, ownerID, projectID string) ([]TournamentSummary, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	list := make([]TournamentSummary, 0, len(p.Tournaments))
	for _, t := range p.Tournaments {
		list = append(list, toTournamentSummary(t, p))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (s *tournamentService) GetBracketView(ctx context.Context, ownerID, projectID, tournamentID string) (*BracketView, error) {
	p, t, err := s.readTournament(ctx, ownerID, projectID, tournamentID)
	if err != nil {
		return nil, err
	}
	return buildBracketView(t, p), nil
}

// GetNextMatch returns the next playable match, or nil when the tournament is over.
func (s *tournamentService) GetNextMatch(ctx context.Context, ownerID, projectID, tournamentID string) (*MatchView, error) {
	p, t, err := s.readTournament(ctx, ownerID, projectID, tournamentID)
	if err != nil {
		return nil, err
	}
	m := brackets.NextMatch(t)
	if m == nil {
		return nil, nil
	}
	mv := toMatchViewFunc(m, itemViewsFunc(t, p))
	return &mv, nil
}

// SubmitTournamentMatch records a match result as one locked transaction: validation,
// rating update, battle record, bracket advancement and persistence. A second submission
// for the same match fails with brackets.ErrMatchAlreadyCompleted.
func (s *tournamentService) SubmitTournamentMatch(ctx context.Context, ownerID, projectID, tournamentID string, input SubmitMatchInput) (*MatchResult, error) {
	var result *MatchResult
	err := s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}
		t, ok := p.Tournaments[tournamentID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
		}

		m, loserID, err := brackets.CheckResult(t, input.MatchID, input.WinnerID)
		if err != nil {
			return err
		}
		itemA, itemB := m.ItemIDs()

		now := utcNow()
		battle, err := applyBattle(p, itemA, itemB, input.WinnerID, models.TournamentSource(t.ID), now)
		if err != nil {
			return err
		}
		outcome, err := brackets.RecordResult(t, m.ID, input.WinnerID, battle.Battle.ID, now)
		if err != nil {
			return err
		}

		result = &MatchResult{
			Battle:       *battle,
			MatchID:      outcome.MatchID,
			ResetCreated: outcome.ResetCreated,
			Completed:    outcome.Completed,
			ChampionID:   outcome.ChampionID,
			AutoAdvanced: outcome.AutoAdvanced,
			Bracket:      buildBracketView(t, p),
		}
		if next := brackets.NextMatch(t); next != nil {
			mv := toMatchViewFunc(next, itemViewsFunc(t, p))
			result.NextMatch = &mv
		}

		s.logger.Debug("tournament match applied",
			slog.String("tournament_id", t.ID),
			slog.String("match_id", m.ID),
			slog.String("winner_id", input.WinnerID),
			slog.String("loser_id", loserID),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.battle(sourceTournament)
	if result.ResetCreated {
		s.metrics.reset()
	}

	payload := NextMatchPayload{
		TournamentID: tournamentID,
		MatchID:      result.MatchID,
		WinnerID:     input.WinnerID,
		ResetCreated: result.ResetCreated,
		ChampionID:   result.ChampionID,
	}
	if result.NextMatch != nil {
		payload.NextMatchID = result.NextMatch.MatchID
	}
	room := brackets.TournamentRoom(tournamentID)
	s.notifier.Notify(room, brackets.MessageBracketUpdated, payload)
	s.notifier.Notify(brackets.ProjectRoom(projectID), brackets.MessageRankingsUpdated, result.Battle)

	if result.Completed {
		s.metrics.tournamentCompleted()
		s.notifier.Notify(room, brackets.MessageTournamentCompleted, payload)
		s.logger.Info("tournament completed",
			slog.String("project_id", projectID),
			slog.String("tournament_id", tournamentID),
			slog.String("champion_id", result.ChampionID),
		)
	}
	return result, nil
}

func (s *tournamentService) readTournament(ctx context.Context, ownerID, projectID, tournamentID string) (*models.Project, *models.Tournament, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, nil, err
	}
	t, ok := p.Tournaments[tournamentID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
	}
	return p, t, nil
}
