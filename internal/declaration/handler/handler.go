package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"habita/internal/declaration/models"
	"habita/internal/declaration/service"
	"habita/internal/engine"
	"habita/internal/history"
	"habita/internal/platform/middleware"
	"habita/internal/status"
	"habita/pkg/domain"
	dErrors "habita/pkg/domain-errors"
	"habita/pkg/platform/httputil"
)

// Service is the declaration application surface the handler needs.
type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.Declaration, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Declaration, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]json.RawMessage) (*models.Declaration, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Declaration, error)
	AddAttachment(ctx context.Context, id uuid.UUID, req service.AddAttachmentRequest, uploadedBy string) (*models.Declaration, error)
	RemoveAttachment(ctx context.Context, id uuid.UUID, attachmentID uuid.UUID) (bool, error)
	Annotate(ctx context.Context, id uuid.UUID, notes string, actorID string) (history.Entry, error)
	History(ctx context.Context, id uuid.UUID) ([]history.Entry, error)
}

// Lifecycle is the slice of the transition engine the handler needs.
type Lifecycle interface {
	Transition(ctx context.Context, declarationID uuid.UUID, target status.Status, tctx engine.TransitionContext) (*engine.Result, error)
	AssignProvider(ctx context.Context, declarationID uuid.UUID, providerID uuid.UUID) (*models.Declaration, error)
	ScheduleAppointment(ctx context.Context, declarationID uuid.UUID, whenISO string) (*models.Declaration, error)
}

// Handler serves the declaration endpoints.
type Handler struct {
	logger       *slog.Logger
	declarations Service
	lifecycle    Lifecycle
	validator    middleware.TokenValidator
}

func New(declarations Service, lifecycle Lifecycle, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		declarations: declarations,
		lifecycle:    lifecycle,
		validator:    validator,
	}
}

// Register mounts the declaration routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/declarations", func(router chi.Router) {
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.RequireAuth(h.validator, h.logger))

		router.Post("/", h.handleCreate)
		router.Get("/", h.handleList)

		router.Route("/{id}", func(router chi.Router) {
			router.Get("/", h.handleGet)
			router.Patch("/", h.handleUpdate)
			router.Get("/history", h.handleHistory)
			router.Post("/transition", h.handleTransition)
			router.Post("/assign", h.handleAssign)
			router.Post("/schedule", h.handleSchedule)
			router.Post("/attachments", h.handleAddAttachment)
			router.Delete("/attachments/{attachmentID}", h.handleRemoveAttachment)
			router.With(middleware.RequireRole(h.logger, middleware.RoleAdmin)).
				Post("/notes", h.handleAnnotate)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	declaration, err := h.declarations.Create(ctx, req)
	if err != nil {
		h.writeFailure(ctx, w, "failed to create declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, declaration)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	declarations, err := h.declarations.List(ctx, filter)
	if err != nil {
		h.writeFailure(ctx, w, "failed to list declarations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"declarations": declarations})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	declaration, err := h.declarations.Get(ctx, id)
	if err != nil {
		h.writeFailure(ctx, w, "failed to load declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, declaration)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	declaration, err := h.declarations.Update(ctx, id, fields)
	if err != nil {
		h.writeFailure(ctx, w, "failed to update declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, declaration)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.declarations.History(ctx, id)
	if err != nil {
		h.writeFailure(ctx, w, "failed to load history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type transitionRequest struct {
	TargetStatus string `json:"targetStatus"`
	Context      struct {
		ProviderID    *uuid.UUID `json:"providerId"`
		AppointmentAt *time.Time `json:"appointmentAt"`
		Reason        string     `json:"reason"`
	} `json:"context"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	result, err := h.lifecycle.Transition(ctx, id, status.Status(req.TargetStatus), engine.TransitionContext{
		ProviderID:    req.Context.ProviderID,
		AppointmentAt: req.Context.AppointmentAt,
		Reason:        req.Context.Reason,
	})
	if err != nil {
		h.writeFailure(ctx, w, "transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"declaration":            result.Declaration,
		"notification_delivered": result.NotificationDelivered,
	})
}

type assignRequest struct {
	ProviderID uuid.UUID `json:"providerId"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProviderID == uuid.Nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "providerId is required"))
		return
	}

	declaration, err := h.lifecycle.AssignProvider(ctx, id, req.ProviderID)
	if err != nil {
		h.writeFailure(ctx, w, "failed to assign provider", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, declaration)
}

type scheduleRequest struct {
	WhenISO string `json:"whenISO"`
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WhenISO == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "whenISO is required"))
		return
	}

	declaration, err := h.lifecycle.ScheduleAppointment(ctx, id, req.WhenISO)
	if err != nil {
		h.writeFailure(ctx, w, "failed to schedule appointment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, declaration)
}

func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req service.AddAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	declaration, err := h.declarations.AddAttachment(ctx, id, req, middleware.GetUserID(ctx))
	if err != nil {
		h.writeFailure(ctx, w, "failed to add attachment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, declaration)
}

func (h *Handler) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attachmentID, err := pathID(r, "attachmentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	removed, err := h.declarations.RemoveAttachment(ctx, id, attachmentID)
	if err != nil {
		h.writeFailure(ctx, w, "failed to remove attachment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

type annotateRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req annotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	entry, err := h.declarations.Annotate(ctx, id, req.Notes, middleware.GetUserID(ctx))
	if err != nil {
		h.writeFailure(ctx, w, "failed to annotate declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

// writeFailure logs server-side failures and maps the error onto the wire.
func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", param)
	}
	return id, nil
}

// parseFilter reads the list query parameters. Unknown values fail loudly so
// a typo never silently returns the unfiltered listing.
func parseFilter(r *http.Request) (models.Filter, error) {
	var filter models.Filter

	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := status.Parse(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		filter.Status = &st
	}
	if raw := r.URL.Query().Get("providerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "invalid providerId")
		}
		filter.ProviderID = &id
	}
	if raw := r.URL.Query().Get("urgency"); raw != "" {
		urgency, err := domain.ParseUrgency(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		filter.Urgency = &urgency
	}
	return filter, nil
}
