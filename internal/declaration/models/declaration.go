package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"habita/internal/status"
	"habita/pkg/domain"
	dErrors "habita/pkg/domain-errors"
)

// AttachmentType is what the uploader declared the file to be.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentQuote AttachmentType = "quote_document"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentQuote:
		return true
	}
	return false
}

// Attachment is one media file reference owned by a declaration.
type Attachment struct {
	ID         uuid.UUID      `json:"id"`
	URL        string         `json:"url"`
	Type       AttachmentType `json:"type"`
	UploadedBy string         `json:"uploaded_by"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

// Declaration is one reported property issue.
//
// Invariants:
//   - Status is always a member of the status registry's closed set
//   - ProviderID, when set, references an existing provider
//   - AppointmentAt set implies the declaration reached DiagnosticMeetingScheduled
//
// Status, ProviderID, and AppointmentAt are mutated only by the transition
// engine; the update path rejects them (see ForbiddenUpdateFields).
// Declarations are never physically deleted: cancellation is a terminal
// status, not a delete.
type Declaration struct {
	ID            uuid.UUID       `json:"id"`
	ReporterName  string          `json:"reporter_name"`
	Email         *string         `json:"email,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Property      string          `json:"property"`
	City          string          `json:"city"`
	PostalCode    string          `json:"postal_code"`
	Description   string          `json:"description"`
	Category      domain.Category `json:"category"`
	Urgency       domain.Urgency  `json:"urgency"`
	Status        status.Status   `json:"status"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ProviderID    *uuid.UUID      `json:"provider_id,omitempty"`
	AppointmentAt *time.Time      `json:"appointment_at,omitempty"`
	ExternalRef   *string         `json:"external_ref,omitempty"`
	Attachments   []Attachment    `json:"attachments"`
}

// CreateRequest carries the fields a reporter submits. Contact (email or
// phone) is optional: declarations arriving through the building's paper
// forms have no digital contact.
type CreateRequest struct {
	ReporterName string  `json:"reporter_name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Property     string  `json:"property"`
	City         string  `json:"city"`
	PostalCode   string  `json:"postal_code"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	Urgency      string  `json:"urgency"`
}

// Normalize trims whitespace in place.
func (r *CreateRequest) Normalize() {
	r.ReporterName = strings.TrimSpace(r.ReporterName)
	r.Property = strings.TrimSpace(r.Property)
	r.City = strings.TrimSpace(r.City)
	r.PostalCode = strings.TrimSpace(r.PostalCode)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Urgency = strings.TrimSpace(r.Urgency)
}

// NewDeclaration validates a create request and constructs a declaration in
// the initial state. The error lists every missing field, not just the first.
func NewDeclaration(id uuid.UUID, req CreateRequest, now time.Time) (*Declaration, error) {
	req.Normalize()

	var missing []string
	for _, field := range []struct {
		name, value string
	}{
		{"reporter_name", req.ReporterName},
		{"property", req.Property},
		{"city", req.City},
		{"postal_code", req.PostalCode},
		{"category", req.Category},
		{"description", req.Description},
		{"urgency", req.Urgency},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "missing fields: %s", strings.Join(missing, ", "))
	}

	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	urgency, err := domain.ParseUrgency(req.Urgency)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	return &Declaration{
		ID:           id,
		ReporterName: req.ReporterName,
		Email:        req.Email,
		Phone:        req.Phone,
		Property:     req.Property,
		City:         req.City,
		PostalCode:   req.PostalCode,
		Description:  req.Description,
		Category:     category,
		Urgency:      urgency,
		Status:       status.New,
		SubmittedAt:  now,
		Attachments:  []Attachment{},
	}, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status     *status.Status
	ProviderID *uuid.UUID
	Urgency    *domain.Urgency
}

// Matches applies the filter to one declaration.
func (f Filter) Matches(d *Declaration) bool {
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.ProviderID != nil && (d.ProviderID == nil || *d.ProviderID != *f.ProviderID) {
		return false
	}
	if f.Urgency != nil && d.Urgency != *f.Urgency {
		return false
	}
	return true
}
