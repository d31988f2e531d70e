package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists audit entries in PostgreSQL. The table has no UPDATE
// or DELETE path in this codebase; append-only is enforced by construction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO history_actions (id, declaration_id, action, occurred_at, actor_id, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.DeclarationID,
		entry.Action,
		entry.OccurredAt,
		entry.ActorID,
		entry.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert history action: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]Entry, error) {
	query := `
		SELECT id, declaration_id, action, occurred_at, COALESCE(actor_id, ''), COALESCE(notes, '')
		FROM history_actions
		WHERE declaration_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, declarationID)
	if err != nil {
		return nil, fmt.Errorf("list history actions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DeclarationID, &e.Action, &e.OccurredAt, &e.ActorID, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan history action: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history actions: %w", err)
	}
	return entries, nil
}
