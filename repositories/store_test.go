package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/elo-arena/models"
)

func newProject(id, owner string) *models.Project {
	return &models.Project{
		ID:        id,
		OwnerID:   owner,
		Name:      "project " + id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newSQLiteBackend(t *testing.T) *SQLBackend {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	b := NewSQLBackend(db, DialectSQLite)
	require.NoError(t, b.EnsureSchema(context.Background()))
	return b
}

// backends runs fn against every document backend.
func backends(t *testing.T, fn func(t *testing.T, b DocumentBackend)) {
	t.Run("file", func(t *testing.T) {
		b, err := NewFileBackend(t.TempDir())
		require.NoError(t, err)
		fn(t, b)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteBackend(t))
	})
}

func TestStore_CreateReadDelete(t *testing.T) {
	backends(t, func(t *testing.T, b DocumentBackend) {
		ctx := context.Background()
		s := NewStore(b, StoreConfig{})

		_, err := s.ReadProject(ctx, "p1")
		assert.ErrorIs(t, err, ErrProjectNotFound)

		require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))
		assert.ErrorIs(t, s.CreateProject(ctx, newProject("p1", "bob")), ErrProjectExists)

		p, err := s.ReadProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.OwnerID)
		assert.Equal(t, models.DefaultKFactor, p.Settings.KFactor)
		assert.NotNil(t, p.Items)
		assert.NotNil(t, p.Tournaments)

		require.NoError(t, s.DeleteProject(ctx, "p1"))
		assert.ErrorIs(t, s.DeleteProject(ctx, "p1"), ErrProjectNotFound)
		_, err = s.ReadProject(ctx, "p1")
		assert.ErrorIs(t, err, ErrProjectNotFound)
	})
}

func TestStore_WithProjectLockPersistsOnSuccess(t *testing.T) {
	backends(t, func(t *testing.T, b DocumentBackend) {
		ctx := context.Background()
		s := NewStore(b, StoreConfig{})
		require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))

		err := s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
			p.Items["i1"] = &models.Item{ID: "i1", Name: "Alpha", Rating: 1000}
			return nil
		})
		require.NoError(t, err)

		p, err := s.ReadProject(ctx, "p1")
		require.NoError(t, err)
		require.Contains(t, p.Items, "i1")
		assert.Equal(t, "Alpha", p.Items["i1"].Name)
		assert.False(t, p.UpdatedAt.IsZero())
	})
}

func TestStore_WithProjectLockDiscardsOnError(t *testing.T) {
	backends(t, func(t *testing.T, b DocumentBackend) {
		ctx := context.Background()
		s := NewStore(b, StoreConfig{})
		require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))

		boom := errors.New("boom")
		err := s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
			p.Name = "changed"
			p.Items["i1"] = &models.Item{ID: "i1"}
			return boom
		})
		assert.Same(t, boom, err)

		p, err := s.ReadProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "project p1", p.Name)
		assert.Empty(t, p.Items)
	})
}

func TestStore_WithProjectLockMissingProject(t *testing.T) {
	backends(t, func(t *testing.T, b DocumentBackend) {
		s := NewStore(b, StoreConfig{})
		called := false
		err := s.WithProjectLock(context.Background(), "nope", func(p *models.Project) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrProjectNotFound)
		assert.False(t, called)
	})
}

func TestStore_ConcurrentMutationsAreSerialised(t *testing.T) {
	backends(t, func(t *testing.T, b DocumentBackend) {
		ctx := context.Background()
		s := NewStore(b, StoreConfig{LockTimeout: 10 * time.Second})
		require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))
		require.NoError(t, s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
			p.Items["counter"] = &models.Item{ID: "counter"}
			return nil
		}))

		const writers = 20
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < writers; i++ {
			g.Go(func() error {
				return s.WithProjectLock(gctx, "p1", func(p *models.Project) error {
					p.Items["counter"].MatchesPlayed++
					p.Battles = append(p.Battles, models.Battle{ID: fmt.Sprintf("b%d", i)})
					return nil
				})
			})
		}
		require.NoError(t, g.Wait())

		p, err := s.ReadProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, writers, p.Items["counter"].MatchesPlayed)
		assert.Len(t, p.Battles, writers)
	})
}

func TestStore_LockTimeout(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics := NewStoreMetrics(reg)
	s := NewStore(b, StoreConfig{LockTimeout: 50 * time.Millisecond, Metrics: metrics})
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	called := false
	err = s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.lockTimeouts))

	// other projects are not blocked by p1
	require.NoError(t, s.CreateProject(ctx, newProject("p2", "alice")))

	close(releaseHolder)
	require.NoError(t, <-holderDone)
	require.NoError(t, s.WithProjectLock(ctx, "p1", func(p *models.Project) error { return nil }))
}

func TestStore_ReadersDoNotWaitForWriters(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := NewStore(b, StoreConfig{LockTimeout: time.Second})
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
			p.Name = "renamed"
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	p, err := s.ReadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "project p1", p.Name, "reader must see the last committed document")

	close(release)
	require.NoError(t, <-done)
	p, err = s.ReadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", p.Name)
}

func TestStore_ContextCancelledWhileWaiting(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := NewStore(b, StoreConfig{LockTimeout: time.Minute})
	require.NoError(t, s.CreateProject(context.Background(), newProject("p1", "alice")))

	release, err := s.locks.acquire(context.Background(), "p1", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.WithProjectLock(ctx, "p1", func(p *models.Project) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_ListProjects(t *testing.T) {
	backends(t, func(t *testing.T, b DocumentBackend) {
		ctx := context.Background()
		s := NewStore(b, StoreConfig{})
		for i, owner := range []string{"alice", "bob", "alice", "carol", "alice"} {
			require.NoError(t, s.CreateProject(ctx, newProject(fmt.Sprintf("p%d", i), owner)))
		}

		mine, err := s.ListProjects(ctx, "alice")
		require.NoError(t, err)
		ids := []string{}
		for _, p := range mine {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, []string{"p0", "p2", "p4"}, ids)

		all, err := s.ListProjects(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestStore_InvalidIDs(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := NewStore(b, StoreConfig{})

	for _, id := range []string{"", "../etc/passwd", "a/b", "x.json"} {
		_, err := s.ReadProject(context.Background(), id)
		assert.ErrorIs(t, err, ErrProjectNotFound, "id %q", id)
	}
	assert.Error(t, s.CreateProject(context.Background(), newProject("../x", "alice")))
}

func TestFileBackend_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	s := NewStore(b, StoreConfig{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"id": "broken", "items": [`), 0o644))
	_, err = s.ReadProject(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrCorruptDocument)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"id": "someone-else"}`), 0o644))
	_, err = s.ReadProject(context.Background(), "other")
	assert.ErrorIs(t, err, ErrCorruptDocument)

	err = s.WithProjectLock(context.Background(), "broken", func(p *models.Project) error { return nil })
	assert.ErrorIs(t, err, ErrCorruptDocument)
}

func TestFileBackend_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	s := NewStore(b, StoreConfig{})
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, newProject("p1", "alice")))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.WithProjectLock(ctx, "p1", func(p *models.Project) error {
			p.Description = fmt.Sprintf("rev %d", i)
			return nil
		}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p1.json", entries[0].Name())

	ids, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestLockTable_EntriesAreReleased(t *testing.T) {
	lt := newLockTable()
	var wg sync.WaitGroup
	var inside, maxInside int32

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lt.acquire(context.Background(), "p", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, lt.size())
}
