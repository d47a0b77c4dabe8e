package usecase

import "sync"

// ThreadLocks serializes writers per thread id. Entries are created lazily on
// first use and kept for process lifetime; the set of thread ids is assumed
// bounded (external callers cap it). Injected into the controller rather than
// held as package state so tests and alternative policies can swap it.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the per-thread mutex is held and returns its release
// function. At most one caller holds the lock for a given thread id at a time.
func (t *ThreadLocks) Lock(threadID string) (unlock func()) {
	t.mu.Lock()
	m, ok := t.locks[threadID]
	if !ok {
		m = &sync.Mutex{}
		t.locks[threadID] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Size reports how many thread ids have been locked at least once.
func (t *ThreadLocks) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
