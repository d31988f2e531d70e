//go:build integration

package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	declmodels "habita/internal/declaration/models"
	declstore "habita/internal/declaration/store"
	"habita/internal/history"
	"habita/internal/status"
	"habita/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres     *containers.PostgresContainer
	store        *history.PostgresStore
	declarations *declstore.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = history.NewPostgres(s.postgres.DB)
	s.declarations = declstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background()))
}

func (s *PostgresStoreSuite) seedDeclaration() uuid.UUID {
	d := &declmodels.Declaration{
		ID:           uuid.New(),
		ReporterName: "Jean Dupont",
		Property:     "Rua X 10",
		City:         "Lisboa",
		PostalCode:   "1000-001",
		Description:  "leak",
		Category:     "plumbing",
		Urgency:      "high",
		Status:       status.New,
		SubmittedAt:  time.Now(),
	}
	s.Require().NoError(s.declarations.Create(context.Background(), d))
	return d.ID
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	declarationID := s.seedDeclaration()
	base := time.Now().Add(-time.Hour).Truncate(time.Microsecond)

	actions := []string{history.ActionStatusChanged, history.ActionProviderAssigned, history.ActionNote}
	for i, action := range actions {
		s.Require().NoError(s.store.Append(ctx, history.Entry{
			ID:            uuid.New(),
			DeclarationID: declarationID,
			Action:        action,
			OccurredAt:    base.Add(time.Duration(i) * time.Minute),
			ActorID:       "admin-1",
			Notes:         "entry",
		}))
	}

	entries, err := s.store.ListByDeclaration(ctx, declarationID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	for i, entry := range entries {
		s.Equal(actions[i], entry.Action)
	}
}

func (s *PostgresStoreSuite) TestEmptyActorAndNotesRoundtrip() {
	ctx := context.Background()
	declarationID := s.seedDeclaration()

	s.Require().NoError(s.store.Append(ctx, history.Entry{
		ID:            uuid.New(),
		DeclarationID: declarationID,
		Action:        history.ActionStatusChanged,
		OccurredAt:    time.Now().Truncate(time.Microsecond),
	}))

	entries, err := s.store.ListByDeclaration(ctx, declarationID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Empty(entries[0].ActorID)
	s.Empty(entries[0].Notes)
}

func (s *PostgresStoreSuite) TestIsolatesDeclarations() {
	ctx := context.Background()
	first := s.seedDeclaration()
	second := s.seedDeclaration()

	s.Require().NoError(s.store.Append(ctx, history.Entry{
		ID:            uuid.New(),
		DeclarationID: first,
		Action:        history.ActionNote,
		OccurredAt:    time.Now(),
		Notes:         "only on first",
	}))

	entries, err := s.store.ListByDeclaration(ctx, second)
	s.Require().NoError(err)
	s.Empty(entries)
}
