package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyCacheEntry is a recorded response, or a reservation held by a
// request that is still running when Pending is set.
type IdempotencyCacheEntry struct {
	Key          string
	ActorID      uuid.UUID
	RequestHash  string
	Pending      bool
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string, actorID uuid.UUID) (*IdempotencyCacheEntry, error) {
	var (
		e      IdempotencyCacheEntry
		status sql.NullInt32
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, actor_id, request_hash, status_code, response_body, created_at, expires_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND actor_id = $2 AND expires_at > now()`,
		key, actorID,
	).Scan(&e.Key, &e.ActorID, &e.RequestHash, &status, &e.ResponseBody, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", MapError(err))
	}
	e.Pending = !status.Valid
	e.StatusCode = int(status.Int32)
	return &e, nil
}

// Reserve claims (key, actor) for a request about to run, until leaseUntil.
// An expired row is taken over. When the key is held, Reserve returns false
// and the live entry, which is nil if it expired in between.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key string, actorID uuid.UUID, requestHash string, leaseUntil time.Time) (*IdempotencyCacheEntry, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, actor_id, request_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key, actor_id) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			status_code = NULL,
			response_body = NULL,
			created_at = now(),
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_cache.expires_at <= now()`,
		key, actorID, requestHash, leaseUntil,
	)
	if err != nil {
		return nil, false, fmt.Errorf("Reserve: %w", MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("Reserve: rows affected: %w", MapError(err))
	}
	if n == 1 {
		return nil, true, nil
	}

	existing, err := r.Get(ctx, key, actorID)
	if err != nil {
		return nil, false, fmt.Errorf("Reserve: %w", err)
	}
	return existing, false, nil
}

// Complete stores the response for a reservation and extends it to the
// entry's expiry.
func (r *IdempotencyRepository) Complete(ctx context.Context, entry *IdempotencyCacheEntry) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_cache
		SET status_code = $3, response_body = $4, expires_at = $5
		WHERE idempotency_key = $1 AND actor_id = $2 AND status_code IS NULL`,
		entry.Key, entry.ActorID, entry.StatusCode, entry.ResponseBody, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", MapError(err))
	}
	return nil
}

// Release drops a pending reservation so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string, actorID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache
		WHERE idempotency_key = $1 AND actor_id = $2 AND status_code IS NULL`,
		key, actorID,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", MapError(err))
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", MapError(err))
	}
	return n, nil
}
