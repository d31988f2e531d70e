package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"habita/internal/provider/store"
	"habita/pkg/domain"
	dErrors "habita/pkg/domain-errors"
)

type DirectorySuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func (s *DirectorySuite) SetupTest() {
	s.svc = New(store.NewInMemory())
	s.ctx = context.Background()
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(DirectorySuite))
}

func (s *DirectorySuite) create(company, category string) uuid.UUID {
	p, err := s.svc.Create(s.ctx, CreateRequest{
		CompanyName:  company,
		WorkCategory: category,
		Email:        "ops@" + company + ".example",
	})
	s.Require().NoError(err)
	return p.ID
}

func (s *DirectorySuite) TestCreateValidation() {
	s.Run("rejects empty company name", func() {
		_, err := s.svc.Create(s.ctx, CreateRequest{WorkCategory: "plumbing", Email: "a@b.c"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown work category", func() {
		_, err := s.svc.Create(s.ctx, CreateRequest{CompanyName: "Canos Lda", WorkCategory: "gardening", Email: "a@b.c"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects empty email", func() {
		_, err := s.svc.Create(s.ctx, CreateRequest{CompanyName: "Canos Lda", WorkCategory: "plumbing"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DirectorySuite) TestListActiveOrdering() {
	s.create("Zeta Canos", "plumbing")
	s.create("Alfa Canos", "plumbing")
	s.create("Volt Lda", "electrical")

	providers, err := s.svc.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(providers, 3)

	// Ordered by work category, then company name
	s.Equal(domain.CategoryElectrical, providers[0].WorkCategory)
	s.Equal("Alfa Canos", providers[1].CompanyName)
	s.Equal("Zeta Canos", providers[2].CompanyName)
}

func (s *DirectorySuite) TestArchiveLifecycle() {
	id := s.create("Canos Lda", "plumbing")

	assignable, err := s.svc.Assignable(s.ctx, id)
	s.Require().NoError(err)
	s.True(assignable)

	archived, err := s.svc.Archive(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(archived.ArchivedAt)
	firstArchivedAt := *archived.ArchivedAt

	assignable, err = s.svc.Assignable(s.ctx, id)
	s.Require().NoError(err)
	s.False(assignable, "archived provider must not be assignable")

	s.Run("archive is idempotent", func() {
		again, err := s.svc.Archive(s.ctx, id)
		s.Require().NoError(err)
		s.Require().NotNil(again.ArchivedAt)
		s.Equal(firstArchivedAt, *again.ArchivedAt)
	})

	s.Run("archived provider excluded from active listing", func() {
		active, err := s.svc.ListActive(s.ctx)
		s.Require().NoError(err)
		s.Empty(active)

		archivedList, err := s.svc.ListArchived(s.ctx)
		s.Require().NoError(err)
		s.Len(archivedList, 1)
	})

	s.Run("restore reverses archival", func() {
		restored, err := s.svc.Restore(s.ctx, id)
		s.Require().NoError(err)
		s.Nil(restored.ArchivedAt)

		assignable, err := s.svc.Assignable(s.ctx, id)
		s.Require().NoError(err)
		s.True(assignable)
	})
}

func (s *DirectorySuite) TestUnknownProvider() {
	unknown := uuid.New()

	_, err := s.svc.GetByID(s.ctx, unknown)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Archive(s.ctx, unknown)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Restore(s.ctx, unknown)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	assignable, err := s.svc.Assignable(s.ctx, unknown)
	s.Require().NoError(err)
	s.False(assignable)
}
