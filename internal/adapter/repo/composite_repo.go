package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bouquet/internal/domain"
	"bouquet/internal/infra"
	"bouquet/internal/sqlinline"
)

// CompositeRepositoryPG implements domain.CompositeRepository on PostgreSQL.
type CompositeRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCompositeRepository creates a ledger repository backed by the given executor.
func NewCompositeRepository(sql infra.SQLExecutor) *CompositeRepositoryPG {
	return &CompositeRepositoryPG{sql: sql}
}

// EnsureSchema creates the composite_runs table when missing.
func (r *CompositeRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QCreateCompositeRuns)
	return err
}

// Save inserts a new ledger entry. Records are never updated afterwards.
func (r *CompositeRepositoryPG) Save(ctx context.Context, record *domain.CompositeRecord) error {
	if record == nil {
		return errors.New("repo: composite record is required")
	}
	if _, err := uuid.Parse(record.ID); err != nil {
		return fmt.Errorf("repo: invalid composite id %q: %w", record.ID, err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertCompositeRun,
		record.ID,
		record.Model,
		record.StyleHint,
		record.SubjectSource,
		record.ObjectSource,
		string(record.Status),
		record.ErrorKind,
		record.ErrorDetail,
		record.ResultName,
		record.ResultURL,
		record.DurationMS,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert composite run: %w", err)
	}
	return nil
}

// GetByID fetches a ledger entry. Unknown or malformed ids yield domain.ErrNotFound.
func (r *CompositeRepositoryPG) GetByID(ctx context.Context, id string) (*domain.CompositeRecord, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectCompositeRun, id)
	var (
		record domain.CompositeRecord
		status string
	)
	if err := row.Scan(
		&record.ID,
		&record.Model,
		&record.StyleHint,
		&record.SubjectSource,
		&record.ObjectSource,
		&status,
		&record.ErrorKind,
		&record.ErrorDetail,
		&record.ResultName,
		&record.ResultURL,
		&record.DurationMS,
		&record.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: select composite run: %w", err)
	}
	record.Status = domain.CompositeStatus(status)
	return &record, nil
}

var _ domain.CompositeRepository = (*CompositeRepositoryPG)(nil)
