package finance

import (
	"sync"

	"github.com/google/uuid"
)

// docLocks serializes work on a single document inside this process, so a
// paid amount read stays valid until the payment that depends on it is posted.
type docLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*docLock
}

type docLock struct {
	mu      sync.Mutex
	waiters int
}

// lock blocks until the document is free and returns the unlock func.
func (l *docLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*docLock)
	}
	dl, ok := l.locks[id]
	if !ok {
		dl = &docLock{}
		l.locks[id] = dl
	}
	dl.waiters++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.waiters--
		if dl.waiters == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
