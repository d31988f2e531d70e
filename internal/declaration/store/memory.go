package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"habita/internal/declaration/models"
	"habita/pkg/platform/sentinel"
)

// InMemory keeps declarations in process memory for tests and database-less dev.
type InMemory struct {
	mu           sync.RWMutex
	declarations map[uuid.UUID]*models.Declaration
}

func NewInMemory() *InMemory {
	return &InMemory{declarations: make(map[uuid.UUID]*models.Declaration)}
}

func clone(d *models.Declaration) *models.Declaration {
	cp := *d
	cp.Attachments = append([]models.Attachment{}, d.Attachments...)
	return &cp
}

func (s *InMemory) Create(_ context.Context, declaration *models.Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.declarations[declaration.ID]; exists {
		return sentinel.ErrConflict
	}
	s.declarations[declaration.ID] = clone(declaration)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	declaration, ok := s.declarations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(declaration), nil
}

func (s *InMemory) Update(_ context.Context, declaration *models.Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.declarations[declaration.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := clone(declaration)
	cp.Attachments = stored.Attachments // attachments are managed separately
	s.declarations[declaration.ID] = cp
	return nil
}

func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Declaration
	for _, declaration := range s.declarations {
		if filter.Matches(declaration) {
			out = append(out, clone(declaration))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *InMemory) AddAttachment(_ context.Context, declarationID uuid.UUID, attachment models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	declaration, ok := s.declarations[declarationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	declaration.Attachments = append(declaration.Attachments, attachment)
	return nil
}

func (s *InMemory) RemoveAttachment(_ context.Context, declarationID uuid.UUID, attachmentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	declaration, ok := s.declarations[declarationID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	for i, attachment := range declaration.Attachments {
		if attachment.ID == attachmentID {
			declaration.Attachments = append(declaration.Attachments[:i], declaration.Attachments[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
