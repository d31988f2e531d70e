// Package store persists declarations and their attachments. Stores are dumb
// persistence: every business rule, including the status graph, lives above
// them. They return sentinel errors for translation by callers.
package store

import (
	"context"

	"github.com/google/uuid"

	"habita/internal/declaration/models"
)

// Store is the persistence contract shared by the declaration service and the
// transition engine.
type Store interface {
	Create(ctx context.Context, declaration *models.Declaration) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Declaration, error)
	// Update replaces the stored row, attachments excluded.
	Update(ctx context.Context, declaration *models.Declaration) error
	// List returns declarations matching the filter, newest submission first.
	List(ctx context.Context, filter models.Filter) ([]*models.Declaration, error)
	AddAttachment(ctx context.Context, declarationID uuid.UUID, attachment models.Attachment) error
	// RemoveAttachment reports whether the attachment existed; absence is not
	// an error.
	RemoveAttachment(ctx context.Context, declarationID uuid.UUID, attachmentID uuid.UUID) (bool, error)
}
