package service

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes pipeline runs per session id. Sessions are fully
// independent of each other, so there is no global lock; each id gets its
// own mutex, reference-counted so the map does not grow unbounded.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{
		locks: make(map[uuid.UUID]*sessionLock),
	}
}

// Acquire blocks until the caller holds the session's lock and returns the
// release function.
func (l *sessionLocks) Acquire(id uuid.UUID) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
