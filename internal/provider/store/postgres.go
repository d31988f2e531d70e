package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"habita/internal/provider/models"
	"habita/pkg/domain"
	"habita/pkg/platform/sentinel"
)

// Postgres persists providers in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const providerColumns = `id, company_name, manager_name, work_category, email, phone, address, city, postal_code, tax_id, created_at, archived_at`

func (s *Postgres) Create(ctx context.Context, provider *models.Provider) error {
	query := `
		INSERT INTO providers (` + providerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		provider.ID,
		provider.CompanyName,
		provider.ManagerName,
		string(provider.WorkCategory),
		provider.Email,
		provider.Phone,
		provider.Address,
		provider.City,
		provider.PostalCode,
		provider.TaxID,
		provider.CreatedAt,
		provider.ArchivedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, provider *models.Provider) error {
	query := `
		UPDATE providers
		SET company_name = $2, manager_name = $3, work_category = $4, email = $5,
		    phone = $6, address = $7, city = $8, postal_code = $9, tax_id = $10,
		    archived_at = $11
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		provider.ID,
		provider.CompanyName,
		provider.ManagerName,
		string(provider.WorkCategory),
		provider.Email,
		provider.Phone,
		provider.Address,
		provider.City,
		provider.PostalCode,
		provider.TaxID,
		provider.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update provider rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`
	provider, err := scanProvider(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provider: %w", err)
	}
	return provider, nil
}

func (s *Postgres) List(ctx context.Context, archived bool) ([]*models.Provider, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE (archived_at IS NOT NULL) = $1
		ORDER BY work_category ASC, company_name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, archived)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []*models.Provider
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*models.Provider, error) {
	var p models.Provider
	var category string
	if err := row.Scan(
		&p.ID,
		&p.CompanyName,
		&p.ManagerName,
		&category,
		&p.Email,
		&p.Phone,
		&p.Address,
		&p.City,
		&p.PostalCode,
		&p.TaxID,
		&p.CreatedAt,
		&p.ArchivedAt,
	); err != nil {
		return nil, err
	}
	p.WorkCategory = domain.Category(category)
	return &p, nil
}
