package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "habita/pkg/domain-errors"
	"habita/pkg/domain"
)

// Provider is a service company that can be assigned to declarations.
//
// Invariants:
//   - CompanyName is non-empty and at most 128 characters
//   - WorkCategory is a member of the closed category set
//   - Email is non-empty (the notification port needs somewhere to send)
//
// Archived providers (ArchivedAt set) must not be assigned to new
// declarations but remain referenceable from historical ones, so archival is
// a soft flag, never a row delete.
type Provider struct {
	ID           uuid.UUID       `json:"id"`
	CompanyName  string          `json:"company_name"`
	ManagerName  string          `json:"manager_name,omitempty"`
	WorkCategory domain.Category `json:"work_category"`
	Email        string          `json:"email"`
	Phone        *string         `json:"phone,omitempty"`
	Address      string          `json:"address,omitempty"`
	City         string          `json:"city,omitempty"`
	PostalCode   string          `json:"postal_code,omitempty"`
	TaxID        *string         `json:"tax_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ArchivedAt   *time.Time      `json:"archived_at,omitempty"`
}

func (p *Provider) IsArchived() bool {
	return p.ArchivedAt != nil
}

// Archive marks the provider unassignable. Idempotent: archiving an archived
// provider keeps the original archival timestamp.
func (p *Provider) Archive(now time.Time) {
	if p.ArchivedAt == nil {
		p.ArchivedAt = &now
	}
}

// Restore clears the archival flag, making the provider assignable again.
func (p *Provider) Restore() {
	p.ArchivedAt = nil
}

// NewProvider constructs a provider, enforcing invariants.
func NewProvider(id uuid.UUID, companyName string, workCategory domain.Category, email string, now time.Time) (*Provider, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "company name cannot be empty")
	}
	if len(companyName) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "company name must be 128 characters or less")
	}
	if !workCategory.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown work category %q", workCategory)
	}
	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email cannot be empty")
	}
	return &Provider{
		ID:           id,
		CompanyName:  companyName,
		WorkCategory: workCategory,
		Email:        strings.TrimSpace(email),
		CreatedAt:    now,
	}, nil
}
