// Package service implements the declaration persistence surface: creation,
// field updates, attachments, and listings. It enforces input validation and
// the forbidden-field guard, and nothing else; lifecycle rules live in the
// transition engine, which is the only code allowed to touch status,
// provider, and appointment fields.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"habita/internal/declaration/models"
	"habita/internal/declaration/store"
	"habita/internal/history"
	"habita/internal/platform/metrics"
	"habita/pkg/domain"
	dErrors "habita/pkg/domain-errors"
	"habita/pkg/platform/sentinel"
)

// ForbiddenUpdateFields are declaration fields that only the transition
// engine may mutate. An update payload naming any of them is rejected
// outright so no caller can bypass the lifecycle rules.
var ForbiddenUpdateFields = []string{"status", "provider_id", "appointment_at", "resolved_at"}

// Service orchestrates declaration persistence.
type Service struct {
	store      store.Store
	historyLog history.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(declarations store.Store, historyLog history.Store, opts ...Option) *Service {
	s := &Service{store: declarations, historyLog: historyLog, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and persists a new declaration in the initial state.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Declaration, error) {
	declaration, err := models.NewDeclaration(uuid.New(), req, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, declaration); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create declaration")
	}
	s.logger.InfoContext(ctx, "declaration created",
		"declaration_id", declaration.ID,
		"category", string(declaration.Category),
		"urgency", string(declaration.Urgency),
	)
	s.metrics.IncrementDeclarationsCreated()
	return declaration, nil
}

// Get loads one declaration with its attachments.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Declaration, error) {
	declaration, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "declaration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load declaration")
	}
	return declaration, nil
}

// Update merges the given fields into the declaration. The payload is a raw
// key/value map so attempts to smuggle lifecycle fields are detected by key,
// whatever their value. Unknown keys are rejected as validation errors.
func (s *Service) Update(ctx context.Context, id uuid.UUID, fields map[string]json.RawMessage) (*models.Declaration, error) {
	for _, forbidden := range ForbiddenUpdateFields {
		if _, present := fields[forbidden]; present {
			return nil, dErrors.Newf(dErrors.CodeForbiddenField, "field %q may only change through a transition", forbidden)
		}
	}

	declaration, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	for key, raw := range fields {
		if err := applyField(declaration, key, raw); err != nil {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, declaration); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "declaration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update declaration")
	}
	return declaration, nil
}

func applyField(d *models.Declaration, key string, raw json.RawMessage) error {
	invalid := func(err error) error {
		return dErrors.Newf(dErrors.CodeValidation, "invalid value for %q: %v", key, err)
	}
	switch key {
	case "reporter_name":
		return decodeNonEmptyString(key, raw, &d.ReporterName)
	case "property":
		return decodeNonEmptyString(key, raw, &d.Property)
	case "city":
		return decodeNonEmptyString(key, raw, &d.City)
	case "postal_code":
		return decodeNonEmptyString(key, raw, &d.PostalCode)
	case "description":
		return decodeNonEmptyString(key, raw, &d.Description)
	case "email":
		return json.Unmarshal(raw, &d.Email)
	case "phone":
		return json.Unmarshal(raw, &d.Phone)
	case "external_ref":
		return json.Unmarshal(raw, &d.ExternalRef)
	case "category":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		category, err := domain.ParseCategory(v)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, err.Error())
		}
		d.Category = category
		return nil
	case "urgency":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		urgency, err := domain.ParseUrgency(v)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, err.Error())
		}
		d.Urgency = urgency
		return nil
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown field %q", key)
	}
}

func decodeNonEmptyString(key string, raw json.RawMessage, dst *string) error {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "invalid value for %q: %v", key, err)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return dErrors.Newf(dErrors.CodeValidation, "field %q cannot be empty", key)
	}
	*dst = v
	return nil
}

// List returns declarations matching the filter, newest submission first.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Declaration, error) {
	declarations, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list declarations")
	}
	return declarations, nil
}

// AddAttachmentRequest carries one uploaded file reference.
type AddAttachmentRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// AddAttachment appends a file reference to the declaration.
func (s *Service) AddAttachment(ctx context.Context, id uuid.UUID, req AddAttachmentRequest, uploadedBy string) (*models.Declaration, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "attachment url cannot be empty")
	}
	kind := models.AttachmentType(req.Type)
	if !kind.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown attachment type %q", req.Type)
	}

	attachment := models.Attachment{
		ID:         uuid.New(),
		URL:        strings.TrimSpace(req.URL),
		Type:       kind,
		UploadedBy: uploadedBy,
		UploadedAt: time.Now(),
	}
	if err := s.store.AddAttachment(ctx, id, attachment); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "declaration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add attachment")
	}
	return s.Get(ctx, id)
}

// RemoveAttachment deletes a file reference. Returns false when the
// attachment was already absent; that is not an error.
func (s *Service) RemoveAttachment(ctx context.Context, id uuid.UUID, attachmentID uuid.UUID) (bool, error) {
	removed, err := s.store.RemoveAttachment(ctx, id, attachmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "declaration not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove attachment")
	}
	return removed, nil
}

// Annotate appends a manual note to the declaration's audit trail.
func (s *Service) Annotate(ctx context.Context, id uuid.UUID, notes string, actorID string) (history.Entry, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return history.Entry{}, dErrors.New(dErrors.CodeValidation, "notes cannot be empty")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return history.Entry{}, err
	}
	entry := history.Entry{
		ID:            uuid.New(),
		DeclarationID: id,
		Action:        history.ActionNote,
		OccurredAt:    time.Now(),
		ActorID:       actorID,
		Notes:         notes,
	}
	if err := s.historyLog.Append(ctx, entry); err != nil {
		return history.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append note")
	}
	return entry, nil
}

// History returns the audit trail, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]history.Entry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.historyLog.ListByDeclaration(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	return entries, nil
}
