// Package engine is the only authorized path for mutating a declaration's
// lifecycle fields. It validates transitions against the status registry,
// enforces preconditions, persists the change, appends the audit entry, and
// fires best-effort notifications.
//
// Concurrency contract: at most one in-flight transition per declaration id.
// Requests for the same id serialize on a per-id mutex; requests for
// different ids proceed independently. Readers therefore observe each
// declaration's transitions in the order requests were accepted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	declmodels "habita/internal/declaration/models"
	declstore "habita/internal/declaration/store"
	"habita/internal/history"
	"habita/internal/notify"
	"habita/internal/platform/metrics"
	"habita/internal/platform/middleware"
	provmodels "habita/internal/provider/models"
	"habita/internal/status"
	dErrors "habita/pkg/domain-errors"
	"habita/pkg/platform/sentinel"
)

// Directory is the slice of the provider directory the engine needs.
type Directory interface {
	Assignable(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*provmodels.Provider, error)
}

// Engine applies lifecycle operations.
type Engine struct {
	declarations  declstore.Store
	providers     Directory
	historyLog    history.Store
	notifier      notify.Notifier
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	locks         *lockTable
	notifyTimeout time.Duration
	now           func() time.Time
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithNotifyTimeout bounds each notification dispatch. A dispatch exceeding
// the bound is reported as undelivered; the transition stays committed.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) { e.notifyTimeout = d }
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(declarations declstore.Store, providers Directory, historyLog history.Store, notifier notify.Notifier, opts ...Option) *Engine {
	e := &Engine{
		declarations:  declarations,
		providers:     providers,
		historyLog:    historyLog,
		notifier:      notifier,
		logger:        slog.Default(),
		tracer:        otel.Tracer("habita/engine"),
		locks:         newLockTable(),
		notifyTimeout: 5 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TransitionContext carries optional fields a transition may set alongside
// the status change, plus cancellation metadata.
type TransitionContext struct {
	// ProviderID assigns a provider as part of the transition. Subject to the
	// same assignability rules as AssignProvider.
	ProviderID *uuid.UUID
	// AppointmentAt schedules the diagnostic meeting as part of the
	// transition. Must be in the future.
	AppointmentAt *time.Time
	// Reason is free-text cancellation metadata. Optional.
	Reason string
}

// Result is the outcome of a committed transition. NotificationDelivered is
// false when the best-effort dispatch failed after the status was persisted;
// callers surface that as a warning, never as a failure.
type Result struct {
	Declaration           *declmodels.Declaration
	NotificationDelivered bool
}

// Transition moves a declaration to the target status.
func (e *Engine) Transition(ctx context.Context, declarationID uuid.UUID, target status.Status, tctx TransitionContext) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.transition", trace.WithAttributes(
		attribute.String("declaration_id", declarationID.String()),
		attribute.String("target_status", string(target)),
	))
	defer span.End()
	start := e.now()
	defer e.metrics.ObserveTransition(start)

	if !status.IsValid(target) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", target)
	}

	lock := e.locks.get(declarationID)
	lock.Lock()
	defer lock.Unlock()

	declaration, err := e.load(ctx, declarationID)
	if err != nil {
		return nil, err
	}

	if !status.IsValidTransition(declaration.Status, target) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot transition from %s to %s", declaration.Status, target)
	}
	if err := e.authorizeTransition(ctx, target); err != nil {
		return nil, err
	}

	if err := e.applyContext(ctx, declaration, tctx); err != nil {
		return nil, err
	}
	if err := checkPrecondition(declaration, target, e.now()); err != nil {
		return nil, err
	}

	from := declaration.Status
	declaration.Status = target
	if target == status.Resolved {
		resolvedAt := e.now()
		declaration.ResolvedAt = &resolvedAt
	}

	if err := e.declarations.Update(ctx, declaration); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist transition")
	}
	e.metrics.IncrementTransition(string(target))

	e.appendHistory(ctx, declaration.ID, transitionEntry(from, target, tctx.Reason, middleware.GetUserID(ctx), e.now()))

	delivered := e.dispatch(ctx, declaration, target)

	e.logger.InfoContext(ctx, "transition committed",
		"declaration_id", declaration.ID,
		"from", string(from),
		"to", string(target),
		"notified", delivered,
		"request_id", middleware.GetRequestID(ctx),
	)
	return &Result{Declaration: declaration, NotificationDelivered: delivered}, nil
}

// AssignProvider links a provider to the declaration without changing status.
// Moving to AwaitingDiagnosticMeeting afterwards is a separate, explicit
// transition so assignment failures and transition failures stay distinct.
func (e *Engine) AssignProvider(ctx context.Context, declarationID uuid.UUID, providerID uuid.UUID) (*declmodels.Declaration, error) {
	ctx, span := e.tracer.Start(ctx, "engine.assign_provider", trace.WithAttributes(
		attribute.String("declaration_id", declarationID.String()),
		attribute.String("provider_id", providerID.String()),
	))
	defer span.End()

	if middleware.GetRole(ctx) != middleware.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "assigning a provider requires the admin role")
	}

	lock := e.locks.get(declarationID)
	lock.Lock()
	defer lock.Unlock()

	declaration, err := e.load(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	if status.IsTerminal(declaration.Status) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "declaration is %s", declaration.Status)
	}

	if err := e.requireAssignable(ctx, providerID); err != nil {
		return nil, err
	}

	declaration.ProviderID = &providerID
	if err := e.declarations.Update(ctx, declaration); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist provider assignment")
	}

	e.appendHistory(ctx, declaration.ID, history.Entry{
		ID:            uuid.New(),
		DeclarationID: declaration.ID,
		Action:        history.ActionProviderAssigned,
		OccurredAt:    e.now(),
		ActorID:       middleware.GetUserID(ctx),
		Notes:         fmt.Sprintf("provider %s", providerID),
	})
	return declaration, nil
}

// ScheduleAppointment records the diagnostic meeting time without changing
// status. Permitted for admins and for the assigned provider.
func (e *Engine) ScheduleAppointment(ctx context.Context, declarationID uuid.UUID, whenISO string) (*declmodels.Declaration, error) {
	ctx, span := e.tracer.Start(ctx, "engine.schedule_appointment", trace.WithAttributes(
		attribute.String("declaration_id", declarationID.String()),
	))
	defer span.End()

	when, err := time.Parse(time.RFC3339, whenISO)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid appointment time %q: must be RFC 3339", whenISO)
	}
	if !when.After(e.now()) {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment_must_be_future")
	}

	lock := e.locks.get(declarationID)
	lock.Lock()
	defer lock.Unlock()

	declaration, err := e.load(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	if status.IsTerminal(declaration.Status) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "declaration is %s", declaration.Status)
	}
	if err := authorizeScheduling(ctx, declaration); err != nil {
		return nil, err
	}

	declaration.AppointmentAt = &when
	if err := e.declarations.Update(ctx, declaration); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist appointment")
	}

	e.appendHistory(ctx, declaration.ID, history.Entry{
		ID:            uuid.New(),
		DeclarationID: declaration.ID,
		Action:        history.ActionAppointmentSet,
		OccurredAt:    e.now(),
		ActorID:       middleware.GetUserID(ctx),
		Notes:         when.Format(time.RFC3339),
	})
	return declaration, nil
}

// authorizeTransition enforces the identity-port rules: terminal targets are
// admin-only; other transitions are open to any authenticated staff caller
// (route middleware gates the roles allowed in at all).
func (e *Engine) authorizeTransition(ctx context.Context, target status.Status) error {
	if target == status.Resolved || target == status.Cancelled {
		if middleware.GetRole(ctx) != middleware.RoleAdmin {
			return dErrors.Newf(dErrors.CodeForbidden, "transition to %s requires the admin role", target)
		}
	}
	return nil
}

func authorizeScheduling(ctx context.Context, declaration *declmodels.Declaration) error {
	role := middleware.GetRole(ctx)
	if role == middleware.RoleAdmin {
		return nil
	}
	// Provider accounts are keyed by their provider id, so the assigned
	// provider's staff may schedule their own visit.
	if role == middleware.RoleProvider && declaration.ProviderID != nil &&
		middleware.GetUserID(ctx) == declaration.ProviderID.String() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "scheduling requires the admin role or the assigned provider")
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*declmodels.Declaration, error) {
	declaration, err := e.declarations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "declaration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load declaration")
	}
	return declaration, nil
}

// applyContext folds precondition-linked fields supplied with the transition
// into the declaration before preconditions run.
func (e *Engine) applyContext(ctx context.Context, declaration *declmodels.Declaration, tctx TransitionContext) error {
	if tctx.ProviderID != nil {
		if err := e.requireAssignable(ctx, *tctx.ProviderID); err != nil {
			return err
		}
		declaration.ProviderID = tctx.ProviderID
	}
	if tctx.AppointmentAt != nil {
		if !tctx.AppointmentAt.After(e.now()) {
			return dErrors.New(dErrors.CodeValidation, "appointment_must_be_future")
		}
		declaration.AppointmentAt = tctx.AppointmentAt
	}
	return nil
}

func (e *Engine) requireAssignable(ctx context.Context, providerID uuid.UUID) error {
	assignable, err := e.providers.Assignable(ctx, providerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check provider")
	}
	if !assignable {
		return dErrors.New(dErrors.CodeProviderNotAssignable, "provider is archived or does not exist")
	}
	return nil
}

// checkPrecondition evaluates the target-specific business rule.
func checkPrecondition(declaration *declmodels.Declaration, target status.Status, now time.Time) error {
	switch target {
	case status.AwaitingDiagnosticMeeting:
		if declaration.ProviderID == nil {
			return dErrors.New(dErrors.CodePreconditionNotMet, "provider_required")
		}
	case status.DiagnosticMeetingScheduled:
		if declaration.AppointmentAt == nil || !declaration.AppointmentAt.After(now) {
			return dErrors.New(dErrors.CodePreconditionNotMet, "appointment_required")
		}
	}
	return nil
}

func transitionEntry(from, to status.Status, reason, actorID string, now time.Time) history.Entry {
	entry := history.Entry{
		ID:         uuid.New(),
		Action:     history.ActionStatusChanged,
		OccurredAt: now,
		ActorID:    actorID,
		Notes:      fmt.Sprintf("%s -> %s", from, to),
	}
	if to == status.Cancelled {
		entry.Action = history.ActionCancelled
		if reason != "" {
			entry.Notes = reason
		}
	}
	return entry
}

// appendHistory records the audit entry. Failure here is logged, not fatal:
// the status change is already the source of truth and must not unwind.
func (e *Engine) appendHistory(ctx context.Context, declarationID uuid.UUID, entry history.Entry) {
	entry.DeclarationID = declarationID
	if err := e.historyLog.Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "failed to append history entry",
			"declaration_id", declarationID,
			"action", entry.Action,
			"error", err,
		)
	}
}

// eventForTarget maps a committed transition to its notification.
var eventForTarget = map[status.Status]notify.EventType{
	status.Transmitted:                notify.EventReceived,
	status.AwaitingDiagnosticMeeting:  notify.EventProviderAssigned,
	status.DiagnosticMeetingScheduled: notify.EventAppointmentScheduled,
	status.QuoteReceived:              notify.EventQuoteReady,
	status.InRepair:                   notify.EventInRepair,
	status.Resolved:                   notify.EventResolved,
	status.Cancelled:                  notify.EventCancelled,
}

// dispatch fires the notification for a committed transition. Best-effort:
// a failure or timeout is logged and counted, never propagated, because the
// status truth lives in the store, not in whether a message was delivered.
func (e *Engine) dispatch(ctx context.Context, declaration *declmodels.Declaration, target status.Status) bool {
	eventType, ok := eventForTarget[target]
	if !ok {
		return true
	}

	event := notify.Event{
		Type:          eventType,
		DeclarationID: declaration.ID.String(),
		Recipients:    e.recipients(ctx, declaration, target),
		Payload:       eventPayload(declaration),
		OccurredAt:    e.now(),
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()
	if err := e.notifier.Send(notifyCtx, event); err != nil {
		e.metrics.IncrementNotificationFailure()
		e.logger.WarnContext(ctx, "notification dispatch failed",
			"declaration_id", declaration.ID,
			"event_type", string(eventType),
			"error", err,
		)
		return false
	}
	return true
}

// recipients resolves who hears about this transition, per the lifecycle
// table: the reporter for most events, the provider once one is involved,
// the admin desk for quotes and fresh submissions.
func (e *Engine) recipients(ctx context.Context, declaration *declmodels.Declaration, target status.Status) []notify.Recipient {
	reporter := notify.Recipient{Role: "reporter", Name: declaration.ReporterName}
	if declaration.Email != nil {
		reporter.Email = *declaration.Email
	}
	admin := notify.Recipient{Role: "admin"}

	var provider *notify.Recipient
	if declaration.ProviderID != nil {
		if p, err := e.providers.GetByID(ctx, *declaration.ProviderID); err == nil {
			provider = &notify.Recipient{Role: "provider", Name: p.CompanyName, Email: p.Email}
		}
	}

	switch target {
	case status.Transmitted:
		return []notify.Recipient{reporter, admin}
	case status.AwaitingDiagnosticMeeting:
		out := []notify.Recipient{reporter}
		if provider != nil {
			out = append(out, *provider)
		}
		return out
	case status.DiagnosticMeetingScheduled:
		out := []notify.Recipient{reporter, admin}
		if provider != nil {
			out = append(out, *provider)
		}
		return out
	case status.QuoteReceived:
		return []notify.Recipient{admin}
	default: // in repair, resolved, cancelled
		return []notify.Recipient{reporter}
	}
}

func eventPayload(declaration *declmodels.Declaration) map[string]string {
	payload := map[string]string{
		"status":   string(declaration.Status),
		"property": declaration.Property,
		"city":     declaration.City,
	}
	if declaration.AppointmentAt != nil {
		payload["appointment_at"] = declaration.AppointmentAt.Format(time.RFC3339)
	}
	return payload
}
