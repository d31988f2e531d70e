// Package history records actions taken against a declaration. Entries are
// append-only: there is no update or delete operation, by design.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Action labels for engine-generated entries. Manual annotations carry
// ActionNote with free-text notes.
const (
	ActionStatusChanged    = "status_changed"
	ActionProviderAssigned = "provider_assigned"
	ActionAppointmentSet   = "appointment_scheduled"
	ActionCancelled        = "cancelled"
	ActionNote             = "note"
)

// Entry is one immutable audit record against a declaration.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	DeclarationID uuid.UUID `json:"declaration_id"`
	Action        string    `json:"action"`
	OccurredAt    time.Time `json:"occurred_at"`
	ActorID       string    `json:"actor_id,omitempty"` // empty for system actions
	Notes         string    `json:"notes,omitempty"`
}
