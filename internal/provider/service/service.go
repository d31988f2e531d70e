// Package service implements the Provider Directory: listing, resolving, and
// soft-archiving the companies administrators can assign to declarations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"habita/internal/platform/metrics"
	"habita/internal/provider/models"
	"habita/pkg/domain"
	dErrors "habita/pkg/domain-errors"
	"habita/pkg/platform/sentinel"
)

// Store is the persistence contract the directory needs.
type Store interface {
	Create(ctx context.Context, provider *models.Provider) error
	Update(ctx context.Context, provider *models.Provider) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	List(ctx context.Context, archived bool) ([]*models.Provider, error)
}

// ListingCache caches the active listing. Optional; nil disables caching.
type ListingCache interface {
	GetActive(ctx context.Context) ([]*models.Provider, bool)
	SetActive(ctx context.Context, providers []*models.Provider)
	Invalidate(ctx context.Context)
}

// Service orchestrates provider directory operations.
type Service struct {
	store   Store
	cache   ListingCache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(cache ListingCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the admin-supplied provider fields.
type CreateRequest struct {
	CompanyName  string  `json:"company_name"`
	ManagerName  string  `json:"manager_name"`
	WorkCategory string  `json:"work_category"`
	Email        string  `json:"email"`
	Phone        *string `json:"phone"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	PostalCode   string  `json:"postal_code"`
	TaxID        *string `json:"tax_id"`
}

// Create registers a new provider.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Provider, error) {
	category, err := domain.ParseCategory(strings.TrimSpace(req.WorkCategory))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	provider, err := models.NewProvider(uuid.New(), req.CompanyName, category, req.Email, time.Now())
	if err != nil {
		return nil, err
	}
	provider.ManagerName = strings.TrimSpace(req.ManagerName)
	provider.Phone = req.Phone
	provider.Address = strings.TrimSpace(req.Address)
	provider.City = strings.TrimSpace(req.City)
	provider.PostalCode = strings.TrimSpace(req.PostalCode)
	provider.TaxID = req.TaxID

	if err := s.store.Create(ctx, provider); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create provider")
	}
	s.invalidate(ctx)
	return provider, nil
}

// ListActive returns assignable providers ordered by work category then
// company name, served from cache when possible.
func (s *Service) ListActive(ctx context.Context) ([]*models.Provider, error) {
	if s.cache != nil {
		if providers, ok := s.cache.GetActive(ctx); ok {
			if s.metrics != nil {
				s.metrics.ProviderCacheHits.Inc()
			}
			return providers, nil
		}
		if s.metrics != nil {
			s.metrics.ProviderCacheMisses.Inc()
		}
	}

	providers, err := s.store.List(ctx, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list providers")
	}
	if s.cache != nil {
		s.cache.SetActive(ctx, providers)
	}
	return providers, nil
}

// ListArchived returns soft-deleted providers.
func (s *Service) ListArchived(ctx context.Context) ([]*models.Provider, error) {
	providers, err := s.store.List(ctx, true)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list archived providers")
	}
	return providers, nil
}

// GetByID resolves one provider, archived or not.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	provider, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "provider not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load provider")
	}
	return provider, nil
}

// Archive soft-deletes a provider. Idempotent: archiving an already-archived
// provider succeeds without touching the original archival timestamp.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	provider, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if provider.IsArchived() {
		return provider, nil
	}
	provider.Archive(time.Now())
	if err := s.store.Update(ctx, provider); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive provider")
	}
	s.logger.InfoContext(ctx, "provider archived", "provider_id", provider.ID)
	s.invalidate(ctx)
	return provider, nil
}

// Restore clears the archival flag.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	provider, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !provider.IsArchived() {
		return provider, nil
	}
	provider.Restore()
	if err := s.store.Update(ctx, provider); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore provider")
	}
	s.logger.InfoContext(ctx, "provider restored", "provider_id", provider.ID)
	s.invalidate(ctx)
	return provider, nil
}

// Assignable reports whether the provider exists and is not archived.
func (s *Service) Assignable(ctx context.Context, id uuid.UUID) (bool, error) {
	provider, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load provider")
	}
	return !provider.IsArchived(), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
