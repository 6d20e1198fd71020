package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"easyentrepreneur/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour

	// A pending key older than this belongs to a request that died mid-flight.
	DefaultIdempotencyStaleAfter = time.Minute
)

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore manages idempotency keys in sys_idempotency.
// Keys are scoped per account: two accounts may use the same key.
// Only successful responses are stored. A failed request releases its key so
// that a rejected creation (quota, number allocation) can be retried as is.
type IdempotencyStore struct {
	db         QuerierProvider
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewIdempotencyStore creates a new idempotency store. ttl <= 0 uses DefaultIdempotencyTTL.
func NewIdempotencyStore(db QuerierProvider, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{
		db:         db,
		ttl:        ttl,
		staleAfter: DefaultIdempotencyStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type idempotencyRecord struct {
	Operation   string
	RequestHash string
	Status      IdempotencyStatus
	Response    []byte
	StatusCode  int
	ContentType string
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Acquire claims key for a request.
// Returns:
//   - (nil, nil) if the caller now owns the key
//   - (replay, nil) if the same request already completed
//   - (nil, error) if the key is in flight or was used for another request
func (s *IdempotencyStore) Acquire(ctx context.Context, userID, key, operation, requestHash string) (*IdempotencyReplay, error) {
	q := s.db.GetQuerier(ctx)
	now := s.now()

	var claimed string
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (user_id, idempotency_key, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
		RETURNING idempotency_key
	`, userID, key, operation, requestHash, IdempotencyStatusPending, now, now.Add(s.ttl)).Scan(&claimed)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	var rec idempotencyRecord
	err = q.QueryRow(ctx, `
		SELECT operation, request_hash, status, response,
		       COALESCE(response_status, 0), COALESCE(response_content_type, ''),
		       updated_at, expires_at
		FROM sys_idempotency
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key).Scan(
		&rec.Operation, &rec.RequestHash, &rec.Status, &rec.Response,
		&rec.StatusCode, &rec.ContentType, &rec.UpdatedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Released between our insert and select.
		return nil, apperror.NewIdempotencyConflict(key)
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	if now.After(rec.ExpiresAt) {
		return nil, s.reclaim(ctx, userID, key, operation, requestHash, rec.UpdatedAt)
	}

	if rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", operation)
	}

	switch rec.Status {
	case IdempotencyStatusSuccess:
		return &IdempotencyReplay{
			StatusCode:  normalizeReplayStatus(rec.StatusCode),
			ContentType: normalizeReplayContentType(rec.ContentType),
			Body:        rec.Response,
		}, nil
	default:
		if now.Sub(rec.UpdatedAt) > s.staleAfter {
			return nil, s.reclaim(ctx, userID, key, operation, requestHash, rec.UpdatedAt)
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
}

// reclaim takes over an expired or abandoned key. The updated_at guard makes
// sure only one of several concurrent reclaimers wins.
func (s *IdempotencyStore) reclaim(ctx context.Context, userID, key, operation, requestHash string, seen time.Time) error {
	now := s.now()
	tag, err := s.db.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET operation = $3, request_hash = $4, status = $5,
		    response = NULL, response_status = NULL, response_content_type = NULL,
		    updated_at = $6, expires_at = $7
		WHERE user_id = $1 AND idempotency_key = $2 AND updated_at = $8
	`, userID, key, operation, requestHash, IdempotencyStatusPending, now, now.Add(s.ttl), seen)
	if err != nil {
		return fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewIdempotencyConflict(key)
	}
	return nil
}

// Complete stores the successful response for replay.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key string, statusCode int, contentType string, body []byte) error {
	_, err := s.db.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $3, response = $4, response_status = $5, response_content_type = $6, updated_at = $7
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key, IdempotencyStatusSuccess, body, statusCode, contentType, s.now())
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops a pending key after a failed request.
func (s *IdempotencyStore) Release(ctx context.Context, userID, key string) error {
	_, err := s.db.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency
		WHERE user_id = $1 AND idempotency_key = $2 AND status = $3
	`, userID, key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func normalizeReplayStatus(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json; charset=utf-8"
	}
	return ct
}
