package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain"
	"easyentrepreneur/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// DefaultOutboxMaxRetries is the number of failed deliveries before a message is parked as failed.
const DefaultOutboxMaxRetries = 5

// OutboxMessage represents a row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// OutboxPublisher writes events to sys_outbox in the caller's transaction.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish inserts event. It must run inside a transaction so the event
// commits or rolls back with the document.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers one message to the broker.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxTx is the transactional access the relay needs. *TxManager implements it.
type OutboxTx interface {
	QuerierProvider
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	GetBatchSender(ctx context.Context) BatchSender
}

// OutboxRelay moves pending messages to an OutboxHandler.
// Several relays can run at once; SKIP LOCKED keeps them off each other's rows.
type OutboxRelay struct {
	txManager  OutboxTx
	handler    OutboxHandler
	batchSize  int
	maxRetries int
	now        func() time.Time
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager OutboxTx, handler OutboxHandler, batchSize, maxRetries int) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = DefaultOutboxMaxRetries
	}
	return &OutboxRelay{
		txManager:  txManager,
		handler:    handler,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run processes batches every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
		} else if n > 0 {
			logger.Debug(ctx, "outbox batch relayed", "count", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch locks up to batchSize due messages, hands each to the handler
// and records the outcome. It returns the number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	delivered := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)

		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, q, &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		var updates StatementBatch
		for _, msg := range messages {
			if err := r.handler.Handle(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount, "error", err)
				r.queueFailed(&updates, msg, err)
				continue
			}
			updates.Queue(`
				UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
			`, OutboxStatusPublished, r.now(), msg.ID)
			delivered++
		}
		if err := updates.Flush(ctx, r.txManager.GetBatchSender(ctx)); err != nil {
			delivered = 0
			return fmt.Errorf("record outbox results: %w", err)
		}
		return nil
	})
	return delivered, err
}

func (r *OutboxRelay) queueFailed(b *StatementBatch, msg *OutboxMessage, cause error) {
	retries := msg.RetryCount + 1
	status := OutboxStatusPending
	if retries >= r.maxRetries {
		status = OutboxStatusFailed
	}
	nextRetry := r.now().Add(RetryDelay(retries))

	b.Queue(`
		UPDATE sys_outbox
		SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
		WHERE id = $5
	`, retries, cause.Error(), nextRetry, status, msg.ID)
}

// RetryDelay grows linearly with the retry count: 1m, 2m, 3m...
func RetryDelay(retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}
	return time.Duration(retries) * time.Minute
}
