package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"easyentrepreneur/internal/core/apperror"
	appctx "easyentrepreneur/internal/core/context"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
	"easyentrepreneur/pkg/logger"
)

const HeaderIdempotencyKey = "Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// IdempotencyStore persists idempotency keys per account.
type IdempotencyStore interface {
	Acquire(ctx context.Context, userID, key, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	Complete(ctx context.Context, userID, key string, statusCode int, contentType string, body []byte) error
	Release(ctx context.Context, userID, key string) error
}

// bodyRecorder keeps a copy of what the handler writes.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency middleware protects POST requests carrying an Idempotency-Key.
// A completed request is replayed byte for byte. A failed one releases the key,
// so a creation refused for quota or a lost numbering race can be retried.
// Must run after Auth: keys are scoped to the authenticated account.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := appctx.GetUserID(ctx)
		if userID == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("could not read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.Acquire(ctx, userID, key, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		c.Next()

		// Errors are rendered later by ErrorHandler, so an error with nothing written yet is a failure too.
		status := recorder.Status()
		if len(c.Errors) > 0 || status >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(ctx), userID, key); err != nil {
				logger.Warn(ctx, "idempotency key release failed", "key", key, "error", err)
			}
			return
		}

		contentType := recorder.Header().Get("Content-Type")
		if err := store.Complete(context.WithoutCancel(ctx), userID, key, status, contentType, recorder.body.Bytes()); err != nil {
			logger.Warn(ctx, "idempotency key completion failed", "key", key, "error", err)
		}
	}
}
