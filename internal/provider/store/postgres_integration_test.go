//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"habita/internal/provider/models"
	"habita/internal/provider/store"
	"habita/pkg/platform/sentinel"
	"habita/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background()))
}

func newProvider(company, email string) *models.Provider {
	return &models.Provider{
		ID:           uuid.New(),
		CompanyName:  company,
		ManagerName:  "Ana Silva",
		WorkCategory: "plumbing",
		Email:        email,
		CreatedAt:    time.Now().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	s.Run("roundtrips", func() {
		p := newProvider("Muller Sanitaer", "ops@muller.example")
		s.Require().NoError(s.store.Create(ctx, p))

		got, err := s.store.FindByID(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.CompanyName, got.CompanyName)
		s.Nil(got.ArchivedAt)
		s.Nil(got.Phone)
	})

	s.Run("duplicate email conflicts", func() {
		first := newProvider("Acme", "shared@acme.example")
		second := newProvider("Acme Clone", "shared@acme.example")
		s.Require().NoError(s.store.Create(ctx, first))

		err := s.store.Create(ctx, second)
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("unknown id yields the sentinel", func() {
		_, err := s.store.FindByID(ctx, uuid.New())
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *PostgresStoreSuite) TestArchiveLifecycle() {
	ctx := context.Background()

	p := newProvider("Muller Sanitaer", "ops@muller.example")
	s.Require().NoError(s.store.Create(ctx, p))

	active, err := s.store.List(ctx, false)
	s.Require().NoError(err)
	s.Require().Len(active, 1)

	now := time.Now().Truncate(time.Microsecond)
	p.Archive(now)
	s.Require().NoError(s.store.Update(ctx, p))

	active, err = s.store.List(ctx, false)
	s.Require().NoError(err)
	s.Empty(active)

	archived, err := s.store.List(ctx, true)
	s.Require().NoError(err)
	s.Require().Len(archived, 1)
	s.Require().NotNil(archived[0].ArchivedAt)
	s.True(archived[0].ArchivedAt.Equal(now))
}

func (s *PostgresStoreSuite) TestListOrdering() {
	ctx := context.Background()

	electric := newProvider("Zeta Elektro", "zeta@example.org")
	electric.WorkCategory = "electrical"
	plumberB := newProvider("Beta Canos", "beta@example.org")
	plumberA := newProvider("Alfa Canos", "alfa@example.org")

	for _, p := range []*models.Provider{plumberB, electric, plumberA} {
		s.Require().NoError(s.store.Create(ctx, p))
	}

	listed, err := s.store.List(ctx, false)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal("Zeta Elektro", listed[0].CompanyName)
	s.Equal("Alfa Canos", listed[1].CompanyName)
	s.Equal("Beta Canos", listed[2].CompanyName)
}
