package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const transactionColumns = `id, account_id, related_account_id, type, source, related_entity_id,
	amount, description, is_canceled, canceled_at, created_by, created_at`

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.AccountID, t.RelatedAccountID, t.Type, t.Source, t.RelatedEntityID,
		t.Amount, t.Description, t.Canceled, t.CanceledAt, t.CreatedBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", MapError(err))
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", MapError(err))
	}
	return t, nil
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", MapError(err))
	}
	return t, nil
}

// FindActiveByOriginForUpdate locks the newest non-canceled transaction a
// subledger entity produced.
func (r *TransactionRepository) FindActiveByOriginForUpdate(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE source = $1 AND related_entity_id = $2 AND NOT is_canceled
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`,
		source, entityID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindActiveByOriginForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindActiveByOriginForUpdate: %w", MapError(err))
	}
	return t, nil
}

func (r *TransactionRepository) MarkCanceled(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET is_canceled = TRUE, canceled_at = $1
		WHERE id = $2 AND NOT is_canceled`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("MarkCanceled: %w", MapError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkCanceled: rows affected: %w", MapError(err))
	}
	if rows == 0 {
		return fmt.Errorf("MarkCanceled: %w", domain.ErrAlreadyCanceled)
	}
	return nil
}

// Relink rewrites the account, amount and description of a subledger-owned
// transaction after its source record was edited.
func (r *TransactionRepository) Relink(ctx context.Context, tx *sql.Tx, id, accountID uuid.UUID, amount decimal.Decimal, description string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET account_id = $1, amount = $2, description = $3
		WHERE id = $4 AND NOT is_canceled`,
		accountID, amount, description, id,
	)
	if err != nil {
		return fmt.Errorf("Relink: %w", MapError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Relink: rows affected: %w", MapError(err))
	}
	if rows == 0 {
		return fmt.Errorf("Relink: %w", domain.ErrNotFound)
	}
	return nil
}

// List returns transactions matching filter, newest first, together with the
// total number of matches. An account filter matches either side of a
// transfer.
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AccountID != nil {
		p := arg(*filter.AccountID)
		conds = append(conds, "(account_id = "+p+" OR related_account_id = "+p+")")
	}
	if filter.Type != nil {
		conds = append(conds, "type = "+arg(*filter.Type))
	}
	if filter.Source != nil {
		conds = append(conds, "source = "+arg(*filter.Source))
	}
	if filter.Canceled != nil {
		conds = append(conds, "is_canceled = "+arg(*filter.Canceled))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", MapError(err))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", MapError(err))
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("List: scan: %w", MapError(err))
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("List: rows: %w", MapError(err))
	}
	return txns, total, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t         domain.Transaction
		related   uuid.NullUUID
		entity    uuid.NullUUID
		createdBy uuid.NullUUID
	)
	err := s.Scan(
		&t.ID, &t.AccountID, &related, &t.Type, &t.Source, &entity,
		&t.Amount, &t.Description, &t.Canceled, &t.CanceledAt, &createdBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.RelatedAccountID = nullUUIDPtr(related)
	t.RelatedEntityID = nullUUIDPtr(entity)
	t.CreatedBy = nullUUIDPtr(createdBy)
	return &t, nil
}

func nullUUIDPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
