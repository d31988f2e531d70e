package engine

import (
	"sync"

	"github.com/google/uuid"
)

// lockTable hands out one mutex per declaration id, so transitions for the
// same declaration serialize while unrelated declarations proceed
// independently. Entries are never evicted: the set of declarations a single
// process mutates is small, and a stable mutex identity is what guarantees
// total ordering per id.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (t *lockTable) get(id uuid.UUID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[id] = lock
	}
	return lock
}
