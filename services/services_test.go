package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/matchmaking"
	"github.com/Dosada05/elo-arena/models"
	"github.com/Dosada05/elo-arena/repositories"
	"github.com/Dosada05/elo-arena/storage"
)

const owner = "user-1"

type notification struct {
	Room string
	Type string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(roomID, msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Room: roomID, Type: msgType})
}

func (n *recordingNotifier) count(room, msgType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Room == room && s.Type == msgType {
			c++
		}
	}
	return c
}

type memoryUploader struct {
	objects map[string][]byte
	deleted []string
	err     error
}

func (u *memoryUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if u.err != nil {
		return nil, u.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.objects[key] = data
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key, ETag: "etag"}, nil
}

func (u *memoryUploader) Delete(ctx context.Context, key string) error {
	if u.err != nil {
		return u.err
	}
	u.deleted = append(u.deleted, key)
	delete(u.objects, key)
	return nil
}

func (u *memoryUploader) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

type testEnv struct {
	store       *repositories.Store
	projects    ProjectService
	battles     BattleService
	tournaments TournamentService
	exports     ExportService
	notifier    *recordingNotifier
	uploader    *memoryUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend, err := repositories.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := repositories.NewStore(backend, repositories.StoreConfig{})
	notifier := &recordingNotifier{}
	uploader := &memoryUploader{objects: map[string][]byte{}}
	metrics := NewMetrics(nil)

	return &testEnv{
		store:       store,
		projects:    NewProjectService(store, models.ProjectSettings{}, nil),
		battles:     NewBattleService(store, matchmaking.NewSelector(), notifier, metrics, nil),
		tournaments: NewTournamentService(store, notifier, metrics, nil),
		exports:     NewExportService(store, uploader, metrics, nil),
		notifier:    notifier,
		uploader:    uploader,
	}
}

func (e *testEnv) project(t *testing.T) *models.Project {
	t.Helper()
	p, err := e.projects.CreateProject(context.Background(), owner, CreateProjectInput{Name: "Movies"})
	require.NoError(t, err)
	return p
}

// addRated adds one item per rating and returns their ids in the same order.
func (e *testEnv) addRated(t *testing.T, projectID string, ratings ...float64) []string {
	t.Helper()
	ids := make([]string, 0, len(ratings))
	for i, r := range ratings {
		r := r
		res, err := e.projects.AddItems(context.Background(), owner, projectID, AddItemsInput{
			Names:         []string{fmt.Sprintf("item-%02d", i+1)},
			InitialRating: &r,
		})
		require.NoError(t, err)
		require.Len(t, res.Added, 1)
		ids = append(ids, res.Added[0].ID)
	}
	return ids
}

func sixteenRatings() []float64 {
	ratings := make([]float64, 16)
	for i := range ratings {
		ratings[i] = 1500 - float64(i)*20
	}
	return ratings
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.projects.CreateProject(ctx, owner, CreateProjectInput{Name: "  "})
	assert.ErrorIs(t, err, ErrValidationFailed)

	bad := -1.0
	_, err = env.projects.CreateProject(ctx, owner, CreateProjectInput{Name: "x", KFactor: &bad})
	assert.ErrorIs(t, err, ErrValidationFailed)

	k := 24.0
	p, err := env.projects.CreateProject(ctx, owner, CreateProjectInput{Name: " Films ", KFactor: &k})
	require.NoError(t, err)
	assert.Equal(t, "Films", p.Name)
	assert.Equal(t, 24.0, p.Settings.KFactor)
	assert.Equal(t, models.DefaultRating, p.Settings.DefaultRating)

	got, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = env.projects.GetProject(ctx, "someone-else", p.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestListUpdateDeleteProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	_, err := env.projects.CreateProject(ctx, "other", CreateProjectInput{Name: "Not mine"})
	require.NoError(t, err)

	list, err := env.projects.ListProjects(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	name := "Series"
	k := 16.0
	updated, err := env.projects.UpdateProject(ctx, owner, p.ID, UpdateProjectInput{Name: &name, KFactor: &k})
	require.NoError(t, err)
	assert.Equal(t, "Series", updated.Name)
	assert.Equal(t, 16.0, updated.Settings.KFactor)

	assert.ErrorIs(t, env.projects.DeleteProject(ctx, "other", p.ID), ErrForbiddenOperation)
	require.NoError(t, env.projects.DeleteProject(ctx, owner, p.ID))
	_, err = env.projects.GetProject(ctx, owner, p.ID)
	assert.ErrorIs(t, err, repositories.ErrProjectNotFound)
}

func TestAddItems_DeduplicatesCaseInsensitively(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)

	res, err := env.projects.AddItems(ctx, owner, p.ID, AddItemsInput{Names: []string{"Alien", " Heat ", "", "alien"}})
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, []string{"alien"}, res.Skipped)

	res, err = env.projects.AddItems(ctx, owner, p.ID, AddItemsInput{Names: []string{"HEAT", "Ran"}})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "Ran", res.Added[0].Name)
	assert.Equal(t, models.DefaultRating, res.Added[0].Rating)
	require.Len(t, res.Added[0].RatingHistory, 1)
	assert.Zero(t, res.Added[0].RatingHistory[0].Delta)

	items, err := env.projects.ListItems(ctx, owner, p.ID)
	require.NoError(t, err)
	names := []string{}
	for _, it := range items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Alien", "Heat", "Ran"}, names)

	_, err = env.projects.AddItems(ctx, owner, p.ID, AddItemsInput{Names: []string{" ", ""}})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, 1000, 1000, 1200)

	_, err := env.battles.SubmitBattle(ctx, owner, p.ID, SubmitBattleInput{ItemAID: ids[0], ItemBID: ids[1], WinnerID: ids[1]})
	require.NoError(t, err)

	item, err := env.projects.GetItem(ctx, owner, p.ID, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, item.Rank)
	assert.Equal(t, 1016.0, item.Rating)
	require.Len(t, item.RatingHistory, 2)
	assert.Zero(t, item.RatingHistory[0].Delta)
	assert.Equal(t, 16.0, item.RatingHistory[1].Delta)

	top, err := env.projects.GetItem(ctx, owner, p.ID, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 1, top.Rank)
	assert.Len(t, top.RatingHistory, 1)

	_, err = env.projects.GetItem(ctx, owner, p.ID, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = env.projects.GetItem(ctx, "someone-else", p.ID, ids[0])
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestRenameAndRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	res, err := env.projects.AddItems(ctx, owner, p.ID, AddItemsInput{Names: []string{"A", "B"}})
	require.NoError(t, err)
	a := res.Added[0]

	_, err = env.projects.RenameItem(ctx, owner, p.ID, a.ID, "b")
	assert.ErrorIs(t, err, ErrDuplicateItems)
	renamed, err := env.projects.RenameItem(ctx, owner, p.ID, a.ID, "Apple")
	require.NoError(t, err)
	assert.Equal(t, "Apple", renamed.Name)

	_, err = env.projects.RenameItem(ctx, owner, p.ID, "missing", "x")
	assert.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, env.projects.RemoveItem(ctx, owner, p.ID, a.ID))
	assert.ErrorIs(t, env.projects.RemoveItem(ctx, owner, p.ID, a.ID), ErrItemNotFound)
}

func TestRemoveItem_InUseByTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, sixteenRatings()...)
	_, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)

	assert.ErrorIs(t, env.projects.RemoveItem(ctx, owner, p.ID, ids[3]), ErrItemInUse)
}

func TestSubmitBattle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, 1000, 1000)

	res, err := env.battles.SubmitBattle(ctx, owner, p.ID, SubmitBattleInput{ItemAID: ids[0], ItemBID: ids[1], WinnerID: ids[0]})
	require.NoError(t, err)
	assert.Equal(t, 16.0, res.Battle.Deltas.ItemA)
	assert.Equal(t, -16.0, res.Battle.Deltas.ItemB)
	assert.Equal(t, 1016.0, res.ItemA.Rating)
	assert.Equal(t, 984.0, res.ItemB.Rating)
	assert.Equal(t, models.SourceFreeform, res.Battle.Source)
	assert.Equal(t, 1, env.notifier.count(brackets.ProjectRoom(p.ID), brackets.MessageRankingsUpdated))

	stored, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	a := stored.Items[ids[0]]
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, a.MatchesPlayed)
	require.Len(t, a.RatingHistory, 2)
	assert.Equal(t, 16.0, a.RatingHistory[1].Delta)
	assert.Equal(t, 1, stored.Items[ids[1]].Losses)
	assert.Len(t, stored.Battles, 1)
}

func TestSubmitBattle_RejectedWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, 1000, 1100, 1200)

	tests := []struct {
		name  string
		input SubmitBattleInput
		want  error
	}{
		{"same item", SubmitBattleInput{ItemAID: ids[0], ItemBID: ids[0], WinnerID: ids[0]}, ErrInvalidBattleResult},
		{"winner outside pair", SubmitBattleInput{ItemAID: ids[0], ItemBID: ids[1], WinnerID: ids[2]}, ErrInvalidBattleResult},
		{"unknown item", SubmitBattleInput{ItemAID: ids[0], ItemBID: "ghost", WinnerID: ids[0]}, ErrItemNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.battles.SubmitBattle(ctx, owner, p.ID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.battles.SubmitBattle(ctx, "intruder", p.ID, SubmitBattleInput{ItemAID: ids[0], ItemBID: ids[1], WinnerID: ids[0]})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	stored, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Battles)
	assert.Equal(t, 1000.0, stored.Items[ids[0]].Rating)
}

func TestSubmitBattle_ConcurrentDisjointPairs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ratings := make([]float64, 16)
	for i := range ratings {
		ratings[i] = 1000 + float64(i)*37
	}
	ids := env.addRated(t, p.ID, ratings...)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(ids); i += 2 {
		g.Go(func() error {
			// the lower rated item wins every battle
			_, err := env.battles.SubmitBattle(gctx, owner, p.ID, SubmitBattleInput{ItemAID: ids[i], ItemBID: ids[i+1], WinnerID: ids[i]})
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Battles, 8)

	// sequential application of the same battles gives the same ratings
	seq := &models.Project{Settings: stored.Settings, Items: map[string]*models.Item{}}
	for i, id := range ids {
		seq.Items[id] = &models.Item{ID: id, Rating: ratings[i]}
	}
	for i := 0; i < len(ids); i += 2 {
		_, err := applyBattle(seq, ids[i], ids[i+1], ids[i], models.SourceFreeform, utcNow())
		require.NoError(t, err)
	}
	for _, id := range ids {
		assert.Equal(t, seq.Items[id].Rating, stored.Items[id].Rating, "item %s", id)
		assert.Equal(t, 1, stored.Items[id].MatchesPlayed)
	}
	for _, b := range stored.Battles {
		assert.Zero(t, b.Deltas.ItemA+b.Deltas.ItemB)
	}
}

func TestGetPairAndReplacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)

	_, err := env.battles.GetPair(ctx, owner, p.ID, matchmaking.StrategyRandom)
	assert.ErrorIs(t, err, matchmaking.ErrInsufficientItems)

	ids := env.addRated(t, p.ID, 1000, 1010, 1500)
	pair, err := env.battles.GetPair(ctx, owner, p.ID, matchmaking.StrategySimilarRating)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0], ids[1]}, []string{pair.ItemA.ID, pair.ItemB.ID})
	assert.Equal(t, "similar_rating", pair.Strategy)

	repl, err := env.battles.GetReplacement(ctx, owner, p.ID, matchmaking.StrategySimilarRating, ids[2])
	require.NoError(t, err)
	assert.NotEqual(t, ids[2], repl.ID)
}

func TestRankingsHistoryStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, 1000, 1000, 1000)

	for _, in := range []SubmitBattleInput{
		{ItemAID: ids[0], ItemBID: ids[1], WinnerID: ids[0]},
		{ItemAID: ids[0], ItemBID: ids[2], WinnerID: ids[0]},
		{ItemAID: ids[1], ItemBID: ids[2], WinnerID: ids[2]},
	} {
		_, err := env.battles.SubmitBattle(ctx, owner, p.ID, in)
		require.NoError(t, err)
	}

	rankings, err := env.projects.GetRankings(ctx, owner, p.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, rankings, 3)
	assert.Equal(t, ids[0], rankings[0].ID)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 3, rankings[2].Rank)
	assert.GreaterOrEqual(t, rankings[0].Rating, rankings[1].Rating)
	assert.GreaterOrEqual(t, rankings[1].Rating, rankings[2].Rating)

	page, err := env.projects.GetRankings(ctx, owner, p.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 2, page[0].Rank)

	history, err := env.projects.GetHistory(ctx, owner, p.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].WinnerID, "most recent first")

	stats, err := env.projects.GetStats(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 3, stats.TotalBattles)
	assert.Equal(t, 3, stats.FreeformBattles)
	assert.Equal(t, 1000.0, stats.AverageRating)
	assert.Equal(t, ids[0], stats.TopItem.ID)
	assert.Equal(t, 2, stats.MostComparedItem.MatchesPlayed)
}

func TestCreateTournament_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, sixteenRatings()...)

	_, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids[:15]})
	assert.ErrorIs(t, err, brackets.ErrInvalidSeedCount)

	dup := append([]string{}, ids[:15]...)
	dup = append(dup, ids[0])
	_, err = env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: dup})
	assert.ErrorIs(t, err, ErrDuplicateItems)

	unknown := append([]string{}, ids[:15]...)
	unknown = append(unknown, "ghost")
	_, err = env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: unknown})
	assert.ErrorIs(t, err, ErrItemNotFound)

	tour, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, "Sweet Sixteen #1", tour.Name)
	assert.Equal(t, models.StatusInProgress, tour.Status)
	assert.Equal(t, ids, tour.Seeds, "items were added in rating order")

	_, err = env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	assert.ErrorIs(t, err, ErrActiveTournamentExists)

	list, err := env.tournaments.ListTournaments(ctx, owner, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 30, list[0].TotalMatches)

	_, err = env.tournaments.GetTournament(ctx, owner, p.ID, "nope")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

// favouriteOf returns the better seeded side of the match.
func favouriteOf(m *MatchView) (string, string) {
	if m.Item1.Seed < m.Item2.Seed {
		return m.Item1.ID, m.Item2.ID
	}
	return m.Item2.ID, m.Item1.ID
}

func TestTournament_FullRunWithoutReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, sixteenRatings()...)
	tour, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)

	var last *MatchResult
	played := 0
	for {
		next, err := env.tournaments.GetNextMatch(ctx, owner, p.ID, tour.ID)
		require.NoError(t, err)
		if next == nil {
			break
		}
		winner, _ := favouriteOf(next)
		last, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: next.MatchID, WinnerID: winner})
		require.NoError(t, err)
		played++
		require.Less(t, played, 40)
	}

	assert.Equal(t, 30, played)
	require.NotNil(t, last)
	assert.True(t, last.Completed)
	assert.False(t, last.ResetCreated)
	assert.Equal(t, ids[0], last.ChampionID)
	assert.Nil(t, last.NextMatch)

	stored, err := env.tournaments.GetTournament(ctx, owner, p.ID, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Nil(t, stored.Match("RESET"))

	proj, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	require.Len(t, proj.Battles, 30)
	for _, b := range proj.Battles {
		assert.Equal(t, models.TournamentSource(tour.ID), b.Source)
		assert.Zero(t, b.Deltas.ItemA+b.Deltas.ItemB)
	}
	assert.Equal(t, 5, proj.Items[ids[0]].Wins, "four winners rounds and the grand final")
	assert.Zero(t, proj.Items[ids[0]].Losses)

	view, err := env.tournaments.GetBracketView(ctx, owner, p.ID, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, proj.Items[ids[0]].Name, view.ChampionName)
	assert.Equal(t, proj.Items[ids[1]].Name, view.RunnerUpName)
	assert.Len(t, view.Winners, 4)
	assert.Len(t, view.Losers, 6)
	assert.Equal(t, 30, view.MatchesPlayed)
	assert.Nil(t, view.Reset)

	room := brackets.TournamentRoom(tour.ID)
	assert.Equal(t, 30, env.notifier.count(room, brackets.MessageBracketUpdated))
	assert.Equal(t, 1, env.notifier.count(room, brackets.MessageTournamentCompleted))

	// a finished tournament frees the project for the next one
	_, err = env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)
}

func TestTournament_LosersChampionForcesReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, sixteenRatings()...)
	tour, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)

	for {
		next, err := env.tournaments.GetNextMatch(ctx, owner, p.ID, tour.ID)
		require.NoError(t, err)
		require.NotNil(t, next)
		if next.Bracket == models.BracketGrandFinal {
			// slot 2 holds the losers-bracket champion
			res, err := env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: next.MatchID, WinnerID: next.Item2.ID})
			require.NoError(t, err)
			assert.True(t, res.ResetCreated)
			assert.False(t, res.Completed)
			require.NotNil(t, res.NextMatch)
			assert.Equal(t, models.BracketReset, res.NextMatch.Bracket)
			assert.Equal(t, 31, res.Bracket.TotalMatches)
			break
		}
		winner, _ := favouriteOf(next)
		_, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: next.MatchID, WinnerID: winner})
		require.NoError(t, err)
	}

	reset, err := env.tournaments.GetNextMatch(ctx, owner, p.ID, tour.ID)
	require.NoError(t, err)
	require.NotNil(t, reset)
	res, err := env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: reset.MatchID, WinnerID: ids[1]})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, ids[1], res.ChampionID)

	proj, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Len(t, proj.Battles, 31)
}

func TestTournament_ResubmissionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, sixteenRatings()...)
	tour, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)

	next, err := env.tournaments.GetNextMatch(ctx, owner, p.ID, tour.ID)
	require.NoError(t, err)
	winner, _ := favouriteOf(next)

	// two tabs submit the same match at once
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: next.MatchID, WinnerID: winner})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, brackets.ErrMatchAlreadyCompleted)
	}
	assert.Equal(t, 1, succeeded)

	before, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	require.Len(t, before.Battles, 1)

	_, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: next.MatchID, WinnerID: winner})
	assert.ErrorIs(t, err, brackets.ErrMatchAlreadyCompleted)

	after, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Len(t, after.Battles, 1)
	assert.Equal(t, before.Items[winner].Rating, after.Items[winner].Rating)
	assert.Equal(t, before.Tournaments[tour.ID].MatchesPlayed, after.Tournaments[tour.ID].MatchesPlayed)
}

func TestTournament_SubmitErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	ids := env.addRated(t, p.ID, sixteenRatings()...)
	tour, err := env.tournaments.CreateTournament(ctx, owner, p.ID, CreateTournamentInput{ItemIDs: ids})
	require.NoError(t, err)

	_, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, "ghost", SubmitMatchInput{MatchID: "W1-1", WinnerID: ids[0]})
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: "X9", WinnerID: ids[0]})
	assert.ErrorIs(t, err, brackets.ErrMatchNotFound)

	_, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: "GF", WinnerID: ids[0]})
	assert.ErrorIs(t, err, brackets.ErrNoPlayableMatch)

	_, err = env.tournaments.SubmitTournamentMatch(ctx, owner, p.ID, tour.ID, SubmitMatchInput{MatchID: "W1-1", WinnerID: ids[5]})
	assert.ErrorIs(t, err, brackets.ErrInvalidWinner)

	proj, err := env.projects.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Empty(t, proj.Battles)
}

func TestExportAndArchive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	env.addRated(t, p.ID, 900, 1200, 1000)

	entries, err := env.exports.ExportRankings(ctx, owner, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1200.0, entries[0].Rating)
	assert.Equal(t, 900.0, entries[2].Rating)

	archived, err := env.exports.ArchiveRankings(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(archived.Key, "exports/"+p.ID+"/"))
	assert.Equal(t, 3, archived.Entries)

	var uploaded []models.ExportEntry
	require.NoError(t, json.Unmarshal(env.uploader.objects[archived.Key], &uploaded))
	assert.Equal(t, entries, uploaded)

	env.uploader.err = errors.New("bucket unavailable")
	_, err = env.exports.ArchiveRankings(ctx, owner, p.ID)
	assert.Error(t, err)

	disabled := NewExportService(env.store, nil, nil, nil)
	_, err = disabled.ArchiveRankings(ctx, owner, p.ID)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	assert.ErrorIs(t, disabled.DeleteArchive(ctx, owner, p.ID, archived.Name), ErrArchiveDisabled)
}

func TestDeleteArchive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t)
	env.addRated(t, p.ID, 1000, 1100)

	archived, err := env.exports.ArchiveRankings(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, path.Base(archived.Key), archived.Name)

	assert.ErrorIs(t, env.exports.DeleteArchive(ctx, "someone-else", p.ID, archived.Name), ErrForbiddenOperation)
	assert.ErrorIs(t, env.exports.DeleteArchive(ctx, owner, p.ID, "../other/"+archived.Name), ErrValidationFailed)
	assert.Empty(t, env.uploader.deleted)

	require.NoError(t, env.exports.DeleteArchive(ctx, owner, p.ID, archived.Name))
	assert.Equal(t, []string{archived.Key}, env.uploader.deleted)
	assert.NotContains(t, env.uploader.objects, archived.Key)

	env.uploader.err = errors.New("bucket unavailable")
	assert.Error(t, env.exports.DeleteArchive(ctx, owner, p.ID, archived.Name))
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		n, limit, offset int
		start, end       int
	}{
		{10, 0, 0, 0, 10},
		{10, 3, 0, 0, 3},
		{10, 3, 8, 8, 10},
		{10, 3, 20, 10, 10},
		{10, -1, -5, 0, 10},
	}
	for _, tt := range tests {
		start, end := paginate(tt.n, tt.limit, tt.offset)
		assert.Equal(t, tt.start, start)
		assert.Equal(t, tt.end, end)
	}
}
