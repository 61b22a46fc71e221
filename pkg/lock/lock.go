// Package lock serialises work on the same (study, volunteer) pair.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jakechorley/study-scheduler/pkg/metrics"
)

// Locker acquires an exclusive lock on a key. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// VolunteerKey is the lock key for a volunteer within a study
func VolunteerKey(studyID, volunteerID int) string {
	return fmt.Sprintf("study:%d:volunteer:%d", studyID, volunteerID)
}

// Local is an in-process Locker. Keys are dropped once nobody holds or
// waits for them.
type Local struct {
	mu      sync.Mutex
	keys    map[string]*entry
	metrics *metrics.Metrics
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an in-process locker
func NewLocal(m *metrics.Metrics) *Local {
	return &Local{keys: make(map[string]*entry), metrics: m}
}

// Lock blocks until key is free or ctx is done
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()

	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	l.metrics.LockWait(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// held returns the number of keys currently tracked
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
