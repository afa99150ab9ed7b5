package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const accountColumns = `id, name, kind, balance, opening_balance, is_active, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", MapError(err))
	}
	return a, nil
}

// List returns accounts ordered by creation time. A nil active matches both
// active and deactivated accounts.
func (r *AccountRepository) List(ctx context.Context, active *bool) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if active != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *active)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", MapError(err))
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", MapError(err))
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", MapError(err))
	}
	return accounts, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Name, account.Kind, account.Balance, account.OpeningBalance,
		account.Active, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrAccountExists)
		}
		return fmt.Errorf("Create: %w", MapError(err))
	}
	return nil
}

func (r *AccountRepository) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET is_active = FALSE, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Deactivate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Deactivate: %w", MapError(err))
	}
	return a, nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", MapError(err))
	}
	return a, nil
}

// UpdateBalance writes the new balance of a row the caller already holds a
// lock on.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`,
		balance, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", MapError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", MapError(err))
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrNotFound)
	}
	return nil
}

// Reconcile recomputes every account's expected balance from its opening
// balance and its non-canceled transactions.
func (r *AccountRepository) Reconcile(ctx context.Context) ([]domain.Reconciliation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.balance,
			a.opening_balance + COALESCE((
				SELECT SUM(CASE
					WHEN t.type = 'INCOME' THEN t.amount
					WHEN t.account_id = a.id THEN -t.amount
					ELSE t.amount
				END)
				FROM transactions t
				WHERE NOT t.is_canceled
					AND (t.account_id = a.id OR t.related_account_id = a.id)
			), 0)
		FROM accounts a
		ORDER BY a.created_at, a.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", MapError(err))
	}
	defer rows.Close()

	result := []domain.Reconciliation{}
	for rows.Next() {
		var rec domain.Reconciliation
		if err := rows.Scan(&rec.AccountID, &rec.Name, &rec.Stored, &rec.Expected); err != nil {
			return nil, fmt.Errorf("Reconcile: scan: %w", MapError(err))
		}
		rec.Expected = domain.Quantize(rec.Expected)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Reconcile: rows: %w", MapError(err))
	}
	return result, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.Name, &a.Kind, &a.Balance, &a.OpeningBalance,
		&a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
