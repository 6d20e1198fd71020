package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchSender is implemented by pgx.Tx and the pool.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// StatementBatch collects statements and sends them in a single round-trip.
type StatementBatch struct {
	queries []BatchQuery
}

// Queue appends a statement.
func (b *StatementBatch) Queue(sql string, args ...any) {
	b.queries = append(b.queries, BatchQuery{SQL: sql, Args: args})
}

// Len returns the number of queued statements.
func (b *StatementBatch) Len() int {
	return len(b.queries)
}

// Flush sends the queued statements and empties the batch.
// The first failing statement aborts the flush.
func (b *StatementBatch) Flush(ctx context.Context, sender BatchSender) error {
	if len(b.queries) == 0 {
		return nil
	}
	if sender == nil {
		return fmt.Errorf("flush batch: no transaction in context")
	}

	batch := &pgx.Batch{}
	for _, q := range b.queries {
		batch.Queue(q.SQL, q.Args...)
	}
	queued := b.queries
	b.queries = nil

	results := sender.SendBatch(ctx, batch)
	defer results.Close()

	for i := range queued {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d failed: %w", i, err)
		}
	}
	return nil
}
