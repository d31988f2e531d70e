package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habita/internal/declaration/models"
	declservice "habita/internal/declaration/service"
	declstore "habita/internal/declaration/store"
	"habita/internal/engine"
	"habita/internal/history"
	"habita/internal/jwtauth"
	"habita/internal/notify"
	"habita/internal/platform/middleware"
	provmodels "habita/internal/provider/models"
	"habita/internal/status"
	"habita/pkg/testutil"
)

const testIssuer = "habita-test"

type stubDirectory struct {
	assignable bool
}

func (d stubDirectory) Assignable(context.Context, uuid.UUID) (bool, error) {
	return d.assignable, nil
}

func (d stubDirectory) GetByID(_ context.Context, id uuid.UUID) (*provmodels.Provider, error) {
	return &provmodels.Provider{ID: id, CompanyName: "Muller Sanitaer", Email: "dispatch@muller.example"}, nil
}

type okNotifier struct{}

func (okNotifier) Send(context.Context, notify.Event) error { return nil }

type testEnv struct {
	router       chi.Router
	jwt          *jwtauth.Service
	declarations *declstore.InMemory
	historyLog   *history.InMemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtSvc := jwtauth.New("test-signing-key", testIssuer)

	declarations := declstore.NewInMemory()
	historyLog := history.NewInMemoryStore()
	svc := declservice.New(declarations, historyLog, declservice.WithLogger(logger))
	eng := engine.New(declarations, stubDirectory{assignable: true}, historyLog, okNotifier{}, engine.WithLogger(logger))

	router := chi.NewRouter()
	New(svc, eng, jwtSvc, logger).Register(router)
	return &testEnv{router: router, jwt: jwtSvc, declarations: declarations, historyLog: historyLog}
}

func (e *testEnv) authorize(t *testing.T, req *http.Request, userID string, role middleware.Role) {
	t.Helper()
	token, err := e.jwt.IssueToken(userID, role, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func (e *testEnv) seed(t *testing.T, st status.Status) *models.Declaration {
	t.Helper()
	d := &models.Declaration{
		ID:           uuid.New(),
		ReporterName: "Jean Dupont",
		Property:     "Rua X 10",
		City:         "Lisboa",
		PostalCode:   "1000-001",
		Description:  "leak",
		Category:     "plumbing",
		Urgency:      "high",
		Status:       st,
		SubmittedAt:  time.Now(),
		Attachments:  []models.Attachment{},
	}
	require.NoError(t, e.declarations.Create(context.Background(), d))
	return d
}

func TestCreateDeclaration(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token is unauthorized", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations", map[string]string{})
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		testutil.AssertErrorCode(t, rr, "unauthorized")
	})

	t.Run("valid request creates in initial state", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations", map[string]string{
			"reporter_name": "Jean Dupont",
			"property":      "Rua X 10",
			"city":          "Lisboa",
			"postal_code":   "1000-001",
			"category":      "plumbing",
			"description":   "leak",
			"urgency":       "high",
		})
		env.authorize(t, req, "cust-1", middleware.RoleCustomer)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		created := testutil.UnmarshalResponse[models.Declaration](t, rr)
		assert.Equal(t, status.New, created.Status)
		assert.Equal(t, "Jean Dupont", created.ReporterName)
		assert.Nil(t, created.Email)
	})

	t.Run("missing fields are all reported", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations", map[string]string{
			"reporter_name": "Jean Dupont",
		})
		env.authorize(t, req, "cust-1", middleware.RoleCustomer)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "validation")
		assert.Contains(t, rr.Body.String(), "property")
		assert.Contains(t, rr.Body.String(), "urgency")
	})
}

func TestGetDeclaration(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown id is not found", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/declarations/"+uuid.NewString(), nil)
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, "not_found")
	})

	t.Run("malformed id is a validation error", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/declarations/not-a-uuid", nil)
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("returns the stored declaration", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodGet, "/declarations/"+d.ID.String(), nil)
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[models.Declaration](t, rr)
		assert.Equal(t, d.ID, got.ID)
	})
}

func TestUpdateDeclaration(t *testing.T) {
	env := newTestEnv(t)

	t.Run("forbidden field is rejected", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPatch, "/declarations/"+d.ID.String(), map[string]string{
			"status": "resolved",
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "forbidden_field")
	})

	t.Run("editable field is applied", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPatch, "/declarations/"+d.ID.String(), map[string]string{
			"description": "leak under the kitchen sink",
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		updated := testutil.UnmarshalResponse[models.Declaration](t, rr)
		assert.Equal(t, "leak under the kitchen sink", updated.Description)
	})
}

func TestListDeclarations(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, status.New)
	env.seed(t, status.Transmitted)

	t.Run("unknown status filter fails loudly", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/declarations?status=fixed", nil)
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("status filter narrows the listing", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/declarations?status=transmitted", nil)
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		listing := testutil.UnmarshalResponse[struct {
			Declarations []models.Declaration `json:"declarations"`
		}](t, rr)
		require.Len(t, listing.Declarations, 1)
		assert.Equal(t, status.Transmitted, listing.Declarations[0].Status)
	})
}

func TestTransitionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid transition reports delivery", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/transition", map[string]any{
			"targetStatus": "transmitted",
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[struct {
			Declaration           models.Declaration `json:"declaration"`
			NotificationDelivered bool               `json:"notification_delivered"`
		}](t, rr)
		assert.Equal(t, status.Transmitted, body.Declaration.Status)
		assert.True(t, body.NotificationDelivered)
	})

	t.Run("graph violation is a conflict", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/transition", map[string]any{
			"targetStatus": "resolved",
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorCode(t, rr, "invalid_transition")
	})

	t.Run("missing provider precondition is unprocessable", func(t *testing.T) {
		d := env.seed(t, status.Transmitted)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/transition", map[string]any{
			"targetStatus": "awaiting_diagnostic_meeting",
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		testutil.AssertErrorCode(t, rr, "precondition_not_met")
	})

	t.Run("non-admin cancellation is forbidden", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/transition", map[string]any{
			"targetStatus": "cancelled",
		})
		env.authorize(t, req, "cust-1", middleware.RoleCustomer)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
		testutil.AssertErrorCode(t, rr, "forbidden")
	})
}

func TestAssignEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("admin assigns a provider", func(t *testing.T) {
		d := env.seed(t, status.Transmitted)
		providerID := uuid.New()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/assign", map[string]string{
			"providerId": providerID.String(),
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		updated := testutil.UnmarshalResponse[models.Declaration](t, rr)
		require.NotNil(t, updated.ProviderID)
		assert.Equal(t, providerID, *updated.ProviderID)
		assert.Equal(t, status.Transmitted, updated.Status)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		d := env.seed(t, status.Transmitted)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/assign", map[string]string{
			"providerId": uuid.NewString(),
		})
		env.authorize(t, req, "cust-1", middleware.RoleCustomer)
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("missing providerId is a validation error", func(t *testing.T) {
		d := env.seed(t, status.Transmitted)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/assign", map[string]string{})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestScheduleEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("future appointment is recorded", func(t *testing.T) {
		d := env.seed(t, status.AwaitingDiagnosticMeeting)
		when := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/schedule", map[string]string{
			"whenISO": when,
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		updated := testutil.UnmarshalResponse[models.Declaration](t, rr)
		require.NotNil(t, updated.AppointmentAt)
	})

	t.Run("past appointment is rejected", func(t *testing.T) {
		d := env.seed(t, status.AwaitingDiagnosticMeeting)
		when := time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/schedule", map[string]string{
			"whenISO": when,
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Contains(t, rr.Body.String(), "appointment_must_be_future")
	})
}

func TestAttachmentsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	d := env.seed(t, status.New)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/attachments", map[string]string{
		"url":  "https://media.example/leak.jpg",
		"type": "image",
	})
	env.authorize(t, req, "cust-1", middleware.RoleCustomer)
	rr := testutil.DoRequest(env.router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	updated := testutil.UnmarshalResponse[models.Declaration](t, rr)
	require.Len(t, updated.Attachments, 1)
	assert.Equal(t, "cust-1", updated.Attachments[0].UploadedBy)

	del := testutil.NewJSONRequest(t, http.MethodDelete,
		"/declarations/"+d.ID.String()+"/attachments/"+updated.Attachments[0].ID.String(), nil)
	env.authorize(t, del, "cust-1", middleware.RoleCustomer)
	rr = testutil.DoRequest(env.router, del)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), `"removed":true`)
}

func TestNotesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("admin annotation lands in history", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/notes", map[string]string{
			"notes": "called the reporter, no answer",
		})
		env.authorize(t, req, "admin-1", middleware.RoleAdmin)
		rr := testutil.DoRequest(env.router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)

		histReq := testutil.NewJSONRequest(t, http.MethodGet, "/declarations/"+d.ID.String()+"/history", nil)
		env.authorize(t, histReq, "admin-1", middleware.RoleAdmin)
		rr = testutil.DoRequest(env.router, histReq)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "called the reporter, no answer")
	})

	t.Run("customer may not annotate", func(t *testing.T) {
		d := env.seed(t, status.New)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/declarations/"+d.ID.String()+"/notes", map[string]string{
			"notes": "sneaky",
		})
		env.authorize(t, req, "cust-1", middleware.RoleCustomer)
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}
