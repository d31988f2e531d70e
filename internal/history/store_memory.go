package history

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps audit entries in process memory. Used in tests and when
// no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[uuid.UUID][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.DeclarationID] = append(s.entries[entry.DeclarationID], entry)
	return nil
}

// ListByDeclaration returns entries oldest first.
func (s *InMemoryStore) ListByDeclaration(_ context.Context, declarationID uuid.UUID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Entry{}, s.entries[declarationID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}
