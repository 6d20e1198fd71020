package documents

import (
	"context"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/domain"
)

// Repository defines storage operations for billing documents.
// Every read and write is scoped to the owning tenant.
type Repository interface {
	// Create inserts doc. A duplicate (tenant, number) must be reported as an
	// error wrapping numerator.ErrNumberTaken.
	Create(ctx context.Context, doc *Document) error

	GetByID(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) (*Document, error)
	GetByNumber(ctx context.Context, kind numerator.Kind, tenantID, number string) (*Document, error)
	List(ctx context.Context, kind numerator.Kind, tenantID string, filter domain.ListFilter) (domain.ListResult[*Document], error)

	// Delete sets the deletion mark. The row and its number are kept.
	Delete(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) error
}
