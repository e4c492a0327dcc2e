package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Schema creates the ledger table. The unique constraints back the
// one-record-per-project rule at the storage level.
const Schema = `
CREATE TABLE IF NOT EXISTS settlement_records (
	id             UUID PRIMARY KEY,
	project_id     VARCHAR(64) NOT NULL UNIQUE,
	buyer_name     VARCHAR(200) NOT NULL,
	amount_paid    NUMERIC(20,4) NOT NULL CHECK (amount_paid >= 0),
	transaction_id VARCHAR(66) NOT NULL UNIQUE,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settlement_records_created_at ON settlement_records (created_at);
`

const recordColumns = "id, project_id, buyer_name, amount_paid, transaction_id, created_at"

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a ledger store over db
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return nil
}

func (s *postgresStore) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `
		INSERT INTO settlement_records (
			id, project_id, buyer_name, amount_paid, transaction_id, created_at
		) VALUES (
			:id, :project_id, :buyer_name, :amount_paid, :transaction_id, :created_at
		)`
	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("failed to append settlement record: %w", err)
	}
	return nil
}

func (s *postgresStore) HasRecordFor(ctx context.Context, projectID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM settlement_records WHERE project_id = $1)", projectID)
	if err != nil {
		return false, fmt.Errorf("failed to check settlement record: %w", err)
	}
	return exists, nil
}

func (s *postgresStore) FindByProject(ctx context.Context, projectID string) (*Record, error) {
	var record Record
	err := s.db.GetContext(ctx, &record,
		"SELECT "+recordColumns+" FROM settlement_records WHERE project_id = $1", projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find settlement record: %w", err)
	}
	return &record, nil
}

func (s *postgresStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	var (
		query strings.Builder
		args  []interface{}
	)
	query.WriteString("SELECT " + recordColumns + " FROM settlement_records")
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query.WriteString(fmt.Sprintf(" WHERE project_id = $%d", len(args)))
	}
	query.WriteString(" ORDER BY created_at, id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	records := []*Record{}
	if err := s.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to list settlement records: %w", err)
	}
	return records, nil
}
