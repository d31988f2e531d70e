package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"habita/internal/platform/middleware"
	"habita/internal/provider/models"
	"habita/internal/provider/service"
	dErrors "habita/pkg/domain-errors"
	"habita/pkg/platform/httputil"
)

// Directory is the provider application surface the handler needs.
type Directory interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Provider, error)
	ListActive(ctx context.Context) ([]*models.Provider, error)
	ListArchived(ctx context.Context) ([]*models.Provider, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	Archive(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	Restore(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// Handler serves the provider directory endpoints.
type Handler struct {
	logger    *slog.Logger
	providers Directory
	validator middleware.TokenValidator
}

func New(providers Directory, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		providers: providers,
		validator: validator,
	}
}

// Register mounts the provider routes. Listing is open to any authenticated
// caller; mutations are admin-only.
func (h *Handler) Register(r chi.Router) {
	r.Route("/providers", func(router chi.Router) {
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.RequireAuth(h.validator, h.logger))

		router.Get("/", h.handleList)
		router.Get("/{id}", h.handleGet)

		admin := router.With(middleware.RequireRole(h.logger, middleware.RoleAdmin))
		admin.Post("/", h.handleCreate)
		admin.Post("/{id}/archive", h.handleArchive)
		admin.Post("/{id}/restore", h.handleRestore)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		providers []*models.Provider
		err       error
	)
	if r.URL.Query().Get("archived") == "true" {
		providers, err = h.providers.ListArchived(ctx)
	} else {
		providers, err = h.providers.ListActive(ctx)
	}
	if err != nil {
		h.writeFailure(ctx, w, "failed to list providers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	provider, err := h.providers.GetByID(ctx, id)
	if err != nil {
		h.writeFailure(ctx, w, "failed to load provider", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, provider)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	provider, err := h.providers.Create(ctx, req)
	if err != nil {
		h.writeFailure(ctx, w, "failed to create provider", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, provider)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	provider, err := h.providers.Archive(ctx, id)
	if err != nil {
		h.writeFailure(ctx, w, "failed to archive provider", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, provider)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	provider, err := h.providers.Restore(ctx, id)
	if err != nil {
		h.writeFailure(ctx, w, "failed to restore provider", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, provider)
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid provider id")
	}
	return id, nil
}
