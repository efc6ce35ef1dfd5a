package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// lockTable hands out one exclusive lock per project id. Entries are reference counted
// and dropped once nobody holds or waits for them, so the table does not grow with the
// number of projects ever touched.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*projectLock
}

type projectLock struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*projectLock)}
}

// acquire blocks until the lock for id is free, timeout elapses or ctx is done.
// The returned release function must be called exactly once.
func (lt *lockTable) acquire(ctx context.Context, id string, timeout time.Duration) (func(), error) {
	lt.mu.Lock()
	l, ok := lt.locks[id]
	if !ok {
		l = &projectLock{sem: make(chan struct{}, 1)}
		lt.locks[id] = l
	}
	l.refs++
	lt.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			lt.unref(id, l)
		}, nil
	case <-timer.C:
		lt.unref(id, l)
		return nil, fmt.Errorf("%w: project %s after %s", ErrLockTimeout, id, timeout)
	case <-ctx.Done():
		lt.unref(id, l)
		return nil, ctx.Err()
	}
}

func (lt *lockTable) unref(id string, l *projectLock) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(lt.locks, id)
	}
}

// size returns the number of live entries.
func (lt *lockTable) size() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.locks)
}
