package service

import "sync"

// slotLocks serializes mutations of the same slot inside one process.
// Capacity limits are additionally enforced by conditional SQL in the repository.
type slotLocks struct {
	mu    sync.Mutex
	locks map[int64]*slotLock
}

type slotLock struct {
	mu   sync.Mutex
	refs int
}

func newSlotLocks() *slotLocks {
	return &slotLocks{locks: make(map[int64]*slotLock)}
}

// Lock blocks until the slot is free and returns the matching unlock func.
func (l *slotLocks) Lock(slotID int64) func() {
	l.mu.Lock()
	lk, ok := l.locks[slotID]
	if !ok {
		lk = &slotLock{}
		l.locks[slotID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, slotID)
		}
		l.mu.Unlock()
	}
}

func (l *slotLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
