package domain

import "context"

// CompositeRepository persists ledger entries for composite runs.
type CompositeRepository interface {
	Save(ctx context.Context, record *CompositeRecord) error
	GetByID(ctx context.Context, id string) (*CompositeRecord, error)
}
