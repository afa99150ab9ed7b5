package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/auth"
	"github.com/josh-kwaku/building-ledger/internal/handler"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/repository"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// maxBodyBytes caps the request body read for hashing.
	maxBodyBytes = 1 << 20

	// pendingLease bounds how long a reservation outlives a request that never
	// completes. It exceeds the server's write timeout.
	pendingLease = time.Minute
)

// IdempotencyStore reserves keys for in-flight requests and records their
// responses.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, actorID uuid.UUID, requestHash string, leaseUntil time.Time) (*repository.IdempotencyCacheEntry, bool, error)
	Complete(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key string, actorID uuid.UUID) error
}

// Idempotency replays the first response recorded for an (Idempotency-Key,
// actor) pair on mutating requests. The key is reserved before the handler
// runs, so a retry that arrives while the first attempt is in flight gets
// 409 IDEMPOTENCY_IN_PROGRESS instead of running twice. Server errors and
// retryable conflicts release the key so the client may retry them.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			actorID, ok := auth.ActorIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					handler.RespondAppError(w, handler.ErrRequestTooLarge, nil)
					return
				}
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			log := logging.FromContext(r.Context()).With("idempotency_key", key)
			reqHash := computeHash(r.Method, r.URL.Path, body)

			existing, reserved, err := store.Reserve(r.Context(), key, actorID, reqHash, time.Now().UTC().Add(pendingLease))
			if err != nil {
				log.Error("idempotency reservation failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}

			if !reserved {
				switch {
				case existing != nil && existing.RequestHash != reqHash:
					handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
				case existing == nil || existing.Pending:
					w.Header().Set("Retry-After", "1")
					handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
				default:
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotent-Replayed", "true")
					w.WriteHeader(existing.StatusCode)
					if _, err := w.Write(existing.ResponseBody); err != nil {
						log.Error("failed to write idempotent replay", "error", err)
					}
				}
				return
			}

			// Bookkeeping after the handler must survive a client disconnect.
			storeCtx := context.WithoutCancel(r.Context())
			completed := false
			defer func() {
				if completed {
					return
				}
				if err := store.Release(storeCtx, key, actorID); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || w.Header().Get("Retry-After") != "" {
				return
			}

			completed = true
			now := time.Now().UTC()
			entry := &repository.IdempotencyCacheEntry{
				Key:          key,
				ActorID:      actorID,
				RequestHash:  reqHash,
				StatusCode:   rec.statusCode,
				ResponseBody: rec.body.Bytes(),
				CreatedAt:    now,
				ExpiresAt:    now.Add(ttl),
			}
			if err := store.Complete(storeCtx, entry); err != nil {
				log.Error("idempotency cache store failed", "error", err)
			}
		})
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
