package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/elo-arena/models"
	"github.com/Dosada05/elo-arena/rating"
)

const defaultHistoryLimit = 50

// ProjectStore is the persistence contract the services need. Every mutation goes
// through WithProjectLock.
type ProjectStore interface {
	ReadProject(ctx context.Context, id string) (*models.Project, error)
	WithProjectLock(ctx context.Context, id string, fn func(p *models.Project) error) error
	CreateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error)
}

// Notifier pushes live updates to subscribers of a room.
type Notifier interface {
	Notify(roomID, msgType string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string, interface{}) {}

func newID() string {
	return uuid.NewString()
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func orDefaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func orNoopNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// checkOwner rejects access to a project owned by someone else. An empty ownerID skips the check.
func checkOwner(p *models.Project, ownerID string) error {
	if ownerID != "" && p.OwnerID != ownerID {
		return ErrForbiddenOperation
	}
	return nil
}

func readOwned(ctx context.Context, store ProjectStore, ownerID, projectID string) (*models.Project, error) {
	p, err := store.ReadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(p, ownerID); err != nil {
		return nil, err
	}
	return p, nil
}

// paginate returns the [offset, offset+limit) window of n elements. limit <= 0 means no limit.
func paginate(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validKFactor(k float64) bool {
	return k > 0 && rating.Valid(k)
}

// applyBattle validates a result, updates both items through the rating engine and appends
// the battle record. Nothing is changed when validation fails.
func applyBattle(p *models.Project, itemAID, itemBID, winnerID, source string, now time.Time) (*models.BattleResult, error) {
	if itemAID == itemBID {
		return nil, fmt.Errorf("%w: item %s cannot battle itself", ErrInvalidBattleResult, itemAID)
	}
	a, ok := p.Items[itemAID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemAID)
	}
	b, ok := p.Items[itemBID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemBID)
	}

	var winner rating.Side
	switch winnerID {
	case itemAID:
		winner = rating.SideA
	case itemBID:
		winner = rating.SideB
	default:
		return nil, fmt.Errorf("%w: winner %s is not one of the two items", ErrInvalidBattleResult, winnerID)
	}

	res := rating.Update(a.Rating, b.Rating, winner, p.Settings.KFactor)

	battle := models.Battle{
		ID:            newID(),
		Timestamp:     now,
		ItemAID:       a.ID,
		ItemBID:       b.ID,
		ItemAName:     a.Name,
		ItemBName:     b.Name,
		WinnerID:      winnerID,
		RatingsBefore: models.PairValues{ItemA: a.Rating, ItemB: b.Rating},
		RatingsAfter:  models.PairValues{ItemA: res.NewA, ItemB: res.NewB},
		Deltas:        models.PairValues{ItemA: res.DeltaA, ItemB: res.DeltaB},
		Source:        source,
	}

	applyToItem(a, res.NewA, res.DeltaA, winner == rating.SideA, now)
	applyToItem(b, res.NewB, res.DeltaB, winner == rating.SideB, now)
	p.Battles = append(p.Battles, battle)

	return &models.BattleResult{Battle: battle, ItemA: *a, ItemB: *b}, nil
}

func applyToItem(item *models.Item, newRating, delta float64, won bool, now time.Time) {
	item.Rating = newRating
	item.MatchesPlayed++
	if won {
		item.Wins++
	} else {
		item.Losses++
	}
	item.RatingHistory = append(item.RatingHistory, models.RatingSnapshot{
		Timestamp: now,
		Rating:    newRating,
		Delta:     delta,
	})
}
