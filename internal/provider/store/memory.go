// Package store persists providers. Implementations return sentinel errors;
// the service layer translates them into coded domain errors.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"habita/internal/provider/models"
	"habita/pkg/platform/sentinel"
)

// InMemory keeps providers in process memory for tests and database-less dev.
type InMemory struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]*models.Provider
}

func NewInMemory() *InMemory {
	return &InMemory{providers: make(map[uuid.UUID]*models.Provider)}
}

func (s *InMemory) Create(_ context.Context, provider *models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[provider.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *provider
	s.providers[provider.ID] = &cp
	return nil
}

func (s *InMemory) Update(_ context.Context, provider *models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[provider.ID]; !exists {
		return sentinel.ErrNotFound
	}
	cp := *provider
	s.providers[provider.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	provider, ok := s.providers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *provider
	return &cp, nil
}

// List returns providers filtered by archival state, ordered by work category
// then company name so listings are deterministic.
func (s *InMemory) List(_ context.Context, archived bool) ([]*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Provider
	for _, provider := range s.providers {
		if provider.IsArchived() == archived {
			cp := *provider
			out = append(out, &cp)
		}
	}
	sortProviders(out)
	return out, nil
}

func sortProviders(providers []*models.Provider) {
	sort.SliceStable(providers, func(i, j int) bool {
		if providers[i].WorkCategory != providers[j].WorkCategory {
			return providers[i].WorkCategory < providers[j].WorkCategory
		}
		return providers[i].CompanyName < providers[j].CompanyName
	})
}
