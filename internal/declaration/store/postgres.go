package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"habita/internal/declaration/models"
	"habita/internal/status"
	"habita/pkg/domain"
	"habita/pkg/platform/sentinel"
)

// Postgres persists declarations in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const declarationColumns = `id, reporter_name, email, phone, property, city, postal_code,
	description, category, urgency, status, submitted_at, resolved_at,
	provider_id, appointment_at, external_ref`

func (s *Postgres) Create(ctx context.Context, d *models.Declaration) error {
	query := `
		INSERT INTO declarations (` + declarationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ReporterName, d.Email, d.Phone, d.Property, d.City, d.PostalCode,
		d.Description, string(d.Category), string(d.Urgency), string(d.Status),
		d.SubmittedAt, d.ResolvedAt, d.ProviderID, d.AppointmentAt, d.ExternalRef,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert declaration: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Declaration, error) {
	query := `SELECT ` + declarationColumns + ` FROM declarations WHERE id = $1`
	d, err := scanDeclaration(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find declaration: %w", err)
	}
	if err := s.loadAttachments(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Postgres) Update(ctx context.Context, d *models.Declaration) error {
	query := `
		UPDATE declarations
		SET reporter_name = $2, email = $3, phone = $4, property = $5, city = $6,
		    postal_code = $7, description = $8, category = $9, urgency = $10,
		    status = $11, resolved_at = $12, provider_id = $13, appointment_at = $14,
		    external_ref = $15
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		d.ID, d.ReporterName, d.Email, d.Phone, d.Property, d.City,
		d.PostalCode, d.Description, string(d.Category), string(d.Urgency),
		string(d.Status), d.ResolvedAt, d.ProviderID, d.AppointmentAt, d.ExternalRef,
	)
	if err != nil {
		return fmt.Errorf("update declaration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update declaration rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter models.Filter) ([]*models.Declaration, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ProviderID != nil {
		args = append(args, *filter.ProviderID)
		conditions = append(conditions, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if filter.Urgency != nil {
		args = append(args, string(*filter.Urgency))
		conditions = append(conditions, fmt.Sprintf("urgency = $%d", len(args)))
	}

	query := `SELECT ` + declarationColumns + ` FROM declarations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list declarations: %w", err)
	}
	defer rows.Close()

	var out []*models.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate declarations: %w", err)
	}
	return out, nil
}

func (s *Postgres) AddAttachment(ctx context.Context, declarationID uuid.UUID, a models.Attachment) error {
	query := `
		INSERT INTO attachments (id, declaration_id, url, type, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, declarationID, a.URL, string(a.Type), a.UploadedBy, a.UploadedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveAttachment(ctx context.Context, declarationID uuid.UUID, attachmentID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attachments WHERE id = $1 AND declaration_id = $2`,
		attachmentID, declarationID,
	)
	if err != nil {
		return false, fmt.Errorf("delete attachment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attachment rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *Postgres) loadAttachments(ctx context.Context, d *models.Declaration) error {
	query := `
		SELECT id, url, type, uploaded_by, uploaded_at
		FROM attachments
		WHERE declaration_id = $1
		ORDER BY uploaded_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, d.ID)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	d.Attachments = []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		var kind string
		if err := rows.Scan(&a.ID, &a.URL, &kind, &a.UploadedBy, &a.UploadedAt); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		a.Type = models.AttachmentType(kind)
		d.Attachments = append(d.Attachments, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attachments: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeclaration(row rowScanner) (*models.Declaration, error) {
	var d models.Declaration
	var category, urgency, st string
	if err := row.Scan(
		&d.ID, &d.ReporterName, &d.Email, &d.Phone, &d.Property, &d.City, &d.PostalCode,
		&d.Description, &category, &urgency, &st, &d.SubmittedAt, &d.ResolvedAt,
		&d.ProviderID, &d.AppointmentAt, &d.ExternalRef,
	); err != nil {
		return nil, err
	}
	d.Category = domain.Category(category)
	d.Urgency = domain.Urgency(urgency)
	d.Status = status.Status(st)
	d.Attachments = []models.Attachment{}
	return &d, nil
}
