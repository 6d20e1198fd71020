// Package numerator provides the PostgreSQL counter used by the counter numbering strategy.
package numerator

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	corenumerator "easyentrepreneur/internal/core/numerator"
)

// Querier is the part of pgx the counter needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CounterStore adds an atomic per-(tenant, kind, year) counter to a number scanner.
type CounterStore struct {
	corenumerator.Store
	db Querier
}

var _ corenumerator.CounterStore = (*CounterStore)(nil)

// NewCounterStore wraps numbers (the document repository) with the document_sequences counter.
func NewCounterStore(numbers corenumerator.Store, db Querier) *CounterStore {
	return &CounterStore{Store: numbers, db: db}
}

const nextValueSQL = `
	INSERT INTO document_sequences (user_id, kind, year, last_value)
	VALUES ($1, $2, $3, GREATEST($4::bigint, 1))
	ON CONFLICT (user_id, kind, year) DO UPDATE
	SET last_value = GREATEST(document_sequences.last_value + 1, $4::bigint),
	    updated_at = NOW()
	RETURNING last_value`

// NextValue increments the counter and returns max(previous+1, floor).
// The row lock taken by the upsert serializes concurrent callers.
func (s *CounterStore) NextValue(ctx context.Context, tenantID string, kind corenumerator.Kind, year int, floor int64) (int64, error) {
	var v int64
	if err := s.db.QueryRow(ctx, nextValueSQL, tenantID, string(kind), year, floor).Scan(&v); err != nil {
		return 0, fmt.Errorf("next %s sequence value: %w", kind, err)
	}
	return v, nil
}
