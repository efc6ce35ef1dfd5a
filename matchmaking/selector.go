// Package matchmaking chooses which items to present for the next freeform battle.
// It never mutates the project it is given.
package matchmaking

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/Dosada05/elo-arena/models"
)

var (
	ErrInsufficientItems = errors.New("project needs at least two items for a battle")
	ErrUnknownStrategy   = errors.New("unknown matchmaking strategy")
)

// Strategy is the closed set of pairing strategies.
type Strategy int

const (
	StrategyRandom Strategy = iota
	StrategyLeastCompared
	StrategySimilarRating
)

var strategyNames = map[Strategy]string{
	StrategyRandom:        "random",
	StrategyLeastCompared: "least_compared",
	StrategySimilarRating: "similar_rating",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps the wire name of a strategy to its value. Empty means random.
// "close_rating" is accepted as an alias of similar_rating.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "random":
		return StrategyRandom, nil
	case "least_compared":
		return StrategyLeastCompared, nil
	case "similar_rating", "close_rating":
		return StrategySimilarRating, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

type pairFunc func(items []*models.Item) (*models.Item, *models.Item)

// Selector picks pairs. It is safe for concurrent use.
type Selector struct {
	mu       sync.Mutex
	rng      *rand.Rand
	handlers map[Strategy]pairFunc
}

// NewSelector creates a selector seeded from the runtime's random source.
func NewSelector() *Selector {
	return NewSelectorWithRand(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewSelectorWithRand creates a selector with a caller supplied source (tests use a fixed seed).
func NewSelectorWithRand(rng *rand.Rand) *Selector {
	s := &Selector{rng: rng}
	s.handlers = map[Strategy]pairFunc{
		StrategyRandom:        s.randomPair,
		StrategyLeastCompared: s.leastComparedPair,
		StrategySimilarRating: s.similarRatingPair,
	}
	return s
}

// NextPair returns two distinct items of the project chosen by strategy.
func (s *Selector) NextPair(project *models.Project, strategy Strategy) (*models.Item, *models.Item, error) {
	handler, ok := s.handlers[strategy]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
	items := itemsOf(project, "")
	if len(items) < 2 {
		return nil, nil, ErrInsufficientItems
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, b := handler(items)
	return a, b, nil
}

// Replacement picks one item other than excludeID, used when the user skips one side of a pair.
func (s *Selector) Replacement(project *models.Project, strategy Strategy, excludeID string) (*models.Item, error) {
	if _, ok := s.handlers[strategy]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
	items := itemsOf(project, excludeID)
	if len(items) < 1 {
		return nil, ErrInsufficientItems
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuffle(items)
	switch strategy {
	case StrategyLeastCompared:
		sort.SliceStable(items, func(i, j int) bool { return items[i].MatchesPlayed < items[j].MatchesPlayed })
		return items[0], nil
	case StrategySimilarRating:
		if excluded, ok := project.Items[excludeID]; ok {
			sort.SliceStable(items, func(i, j int) bool {
				return math.Abs(items[i].Rating-excluded.Rating) < math.Abs(items[j].Rating-excluded.Rating)
			})
		}
		return items[0], nil
	default:
		return items[0], nil
	}
}

func (s *Selector) randomPair(items []*models.Item) (*models.Item, *models.Item) {
	i := s.rng.IntN(len(items))
	j := s.rng.IntN(len(items) - 1)
	if j >= i {
		j++
	}
	return items[i], items[j]
}

// leastComparedPair minimises MatchesPlayed(a)+MatchesPlayed(b). Shuffling before the
// stable sort randomises the order inside every group of equal counts.
func (s *Selector) leastComparedPair(items []*models.Item) (*models.Item, *models.Item) {
	s.shuffle(items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].MatchesPlayed < items[j].MatchesPlayed })
	return items[0], items[1]
}

// similarRatingPair minimises |Rating(a)-Rating(b)|. The closest pair is always adjacent
// in rating order; among equally close adjacent pairs one is chosen at random.
func (s *Selector) similarRatingPair(items []*models.Item) (*models.Item, *models.Item) {
	s.shuffle(items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Rating < items[j].Rating })

	best := math.Inf(1)
	var candidates []int
	for i := 0; i+1 < len(items); i++ {
		diff := items[i+1].Rating - items[i].Rating
		switch {
		case diff < best:
			best = diff
			candidates = append(candidates[:0], i)
		case diff == best:
			candidates = append(candidates, i)
		}
	}
	pick := candidates[s.rng.IntN(len(candidates))]
	if s.rng.IntN(2) == 0 {
		return items[pick], items[pick+1]
	}
	return items[pick+1], items[pick]
}

func (s *Selector) shuffle(items []*models.Item) {
	s.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

// itemsOf returns the project's items in id order so a seeded selector is reproducible.
func itemsOf(project *models.Project, excludeID string) []*models.Item {
	if project == nil {
		return nil
	}
	items := make([]*models.Item, 0, len(project.Items))
	for id, item := range project.Items {
		if id == excludeID {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
