package services

import (
	"context"
	"log/slog"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/matchmaking"
	"github.com/Dosada05/elo-arena/models"
)

type SubmitBattleInput struct {
	ItemAID  string `json:"item_a_id"`
	ItemBID  string `json:"item_b_id"`
	WinnerID string `json:"winner_id"`
}

// Pair is the matchup offered for the next freeform battle.
type Pair struct {
	ItemA    *models.Item `json:"item_a"`
	ItemB    *models.Item `json:"item_b"`
	Strategy string       `json:"strategy"`
}

type BattleService interface {
	GetPair(ctx context.Context, ownerID, projectID string, strategy matchmaking.Strategy) (*Pair, error)
	GetReplacement(ctx context.Context, ownerID, projectID string, strategy matchmaking.Strategy, excludeID string) (*models.Item, error)
	SubmitBattle(ctx context.Context, ownerID, projectID string, input SubmitBattleInput) (*models.BattleResult, error)
}

type battleService struct {
	store    ProjectStore
	selector *matchmaking.Selector
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
}

func NewBattleService(store ProjectStore, selector *matchmaking.Selector, notifier Notifier, metrics *Metrics, logger *slog.Logger) BattleService {
	if selector == nil {
		selector = matchmaking.NewSelector()
	}
	return &battleService{
		store:    store,
		selector: selector,
		notifier: orNoopNotifier(notifier),
		metrics:  metrics,
		logger:   orDefaultLogger(logger),
	}
}

// GetPair reads a snapshot and lets the selector choose; nothing is locked or written.
func (s *battleService) GetPair(ctx context.Context, ownerID, projectID string, strategy matchmaking.Strategy) (*Pair, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	a, b, err := s.selector.NextPair(p, strategy)
	if err != nil {
		return nil, err
	}
	return &Pair{ItemA: a, ItemB: b, Strategy: strategy.String()}, nil
}

func (s *battleService) GetReplacement(ctx context.Context, ownerID, projectID string, strategy matchmaking.Strategy, excludeID string) (*models.Item, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	return s.selector.Replacement(p, strategy, excludeID)
}

// SubmitBattle applies a freeform result in one locked transaction.
func (s *battleService) SubmitBattle(ctx context.Context, ownerID, projectID string, input SubmitBattleInput) (*models.BattleResult, error) {
	var result *models.BattleResult
	err := s.store.WithProjectLock(ctx, projectID, func(p *models.Project) error {
		if err := checkOwner(p, ownerID); err != nil {
			return err
		}
		res, err := applyBattle(p, input.ItemAID, input.ItemBID, input.WinnerID, models.SourceFreeform, utcNow())
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.battle(sourceFreeform)
	s.logger.Info("battle recorded",
		slog.String("project_id", projectID),
		slog.String("battle_id", result.Battle.ID),
		slog.String("winner_id", result.Battle.WinnerID),
		slog.Float64("delta", result.Battle.Deltas.ItemA),
	)
	s.notifier.Notify(brackets.ProjectRoom(projectID), brackets.MessageRankingsUpdated, result)
	return result, nil
}
