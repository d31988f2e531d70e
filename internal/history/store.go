package history

import (
	"context"

	"github.com/google/uuid"
)

// Store persists audit entries. Append-only: implementations expose no
// mutation beyond Append.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]Entry, error)
}
