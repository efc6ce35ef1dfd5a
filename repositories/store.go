package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/elo-arena/models"
)

const (
	DefaultLockTimeout = 5 * time.Second
	slowLockWait       = 500 * time.Millisecond
	listConcurrency    = 8
)

// StoreMetrics collects lock contention figures. A nil *StoreMetrics records nothing.
type StoreMetrics struct {
	lockWait     prometheus.Histogram
	lockTimeouts prometheus.Counter
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "elo_arena",
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for a project lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elo_arena",
			Subsystem: "store",
			Name:      "lock_timeouts_total",
			Help:      "Project lock acquisitions that gave up.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.lockWait, m.lockTimeouts)
	}
	return m
}

func (m *StoreMetrics) observeWait(d time.Duration) {
	if m != nil {
		m.lockWait.Observe(d.Seconds())
	}
}

func (m *StoreMetrics) timeout() {
	if m != nil {
		m.lockTimeouts.Inc()
	}
}

type StoreConfig struct {
	LockTimeout time.Duration
	Logger      *slog.Logger
	Metrics     *StoreMetrics
}

// Store serialises mutations of a project behind a per-project lock and persists whole
// documents through a DocumentBackend. Different projects never contend.
type Store struct {
	backend     DocumentBackend
	locks       *lockTable
	lockTimeout time.Duration
	logger      *slog.Logger
	metrics     *StoreMetrics
}

func NewStore(backend DocumentBackend, cfg StoreConfig) *Store {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		backend:     backend,
		locks:       newLockTable(),
		lockTimeout: cfg.LockTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// ReadProject returns a snapshot of the last committed document. It does not take the lock.
func (s *Store) ReadProject(ctx context.Context, id string) (*models.Project, error) {
	if !validProjectID(id) {
		return nil, ErrProjectNotFound
	}
	data, err := s.backend.Load(ctx, id)
	if err != nil {
		s.logFailure("read project", id, err)
		return nil, err
	}
	p, err := decodeProject(id, data)
	if err != nil {
		s.logFailure("decode project", id, err)
		return nil, err
	}
	return p, nil
}

// WithProjectLock runs fn on a freshly loaded copy of the project while holding the
// project's lock and persists the copy if fn returns nil. When fn fails nothing is written
// and fn's error is returned unchanged. Waiting for the lock is bounded by the configured
// timeout; on expiry ErrLockTimeout is returned and fn is not called.
func (s *Store) WithProjectLock(ctx context.Context, id string, fn func(p *models.Project) error) error {
	if !validProjectID(id) {
		return ErrProjectNotFound
	}
	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	data, err := s.backend.Load(ctx, id)
	if err != nil {
		s.logFailure("load project", id, err)
		return err
	}
	p, err := decodeProject(id, data)
	if err != nil {
		s.logFailure("decode project", id, err)
		return err
	}

	if err := fn(p); err != nil {
		return err
	}

	p.ID = id
	p.UpdatedAt = time.Now().UTC()
	doc, err := encodeProject(p)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, id, p.OwnerID, doc); err != nil {
		s.logFailure("save project", id, err)
		return err
	}
	return nil
}

// CreateProject persists a new project document. It fails with ErrProjectExists when the
// id is taken.
func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	if !validProjectID(p.ID) {
		return fmt.Errorf("invalid project id %q", p.ID)
	}
	release, err := s.lock(ctx, p.ID)
	if err != nil {
		return err
	}
	defer release()

	p.Normalize()
	doc, err := encodeProject(p)
	if err != nil {
		return err
	}
	if err := s.backend.Create(ctx, p.ID, p.OwnerID, doc); err != nil {
		if !errors.Is(err, ErrProjectExists) {
			s.logFailure("create project", p.ID, err)
		}
		return err
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if !validProjectID(id) {
		return ErrProjectNotFound
	}
	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrProjectNotFound) {
			s.logFailure("delete project", id, err)
		}
		return err
	}
	return nil
}

// ListProjects loads every project owned by ownerID (all projects when ownerID is empty).
// Projects deleted while listing are skipped.
func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error) {
	ids, err := s.backend.List(ctx)
	if err != nil {
		s.logFailure("list projects", "", err)
		return nil, err
	}

	loaded := make([]*models.Project, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.ReadProject(gctx, id)
			if errors.Is(err, ErrProjectNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			loaded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	projects := make([]*models.Project, 0, len(loaded))
	for _, p := range loaded {
		if p == nil || (ownerID != "" && p.OwnerID != ownerID) {
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (s *Store) lock(ctx context.Context, id string) (func(), error) {
	start := time.Now()
	release, err := s.locks.acquire(ctx, id, s.lockTimeout)
	waited := time.Since(start)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			s.metrics.timeout()
			s.logger.Warn("project lock timeout", slog.String("project_id", id), slog.Duration("waited", waited))
		}
		return nil, err
	}
	s.metrics.observeWait(waited)
	if waited > slowLockWait {
		s.logger.Info("slow project lock", slog.String("project_id", id), slog.Duration("waited", waited))
	}
	return release, nil
}

func (s *Store) logFailure(op, id string, err error) {
	if errors.Is(err, ErrProjectNotFound) {
		return
	}
	s.logger.Error("store operation failed", slog.String("op", op), slog.String("project_id", id), slog.Any("error", err))
}
