package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const expenseColumns = `id, name, category_id, account_id, amount, payee, receipt_no,
	maintenance_agreement_id, expense_date, created_at, updated_at`

type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.Expense) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Name, e.CategoryID, e.AccountID, e.Amount, e.Payee, e.ReceiptNo,
		e.MaintenanceAgreementID, e.ExpenseDate, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", MapError(err))
	}
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id,
	)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", MapError(err))
	}
	return e, nil
}

func (r *ExpenseRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Expense, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 FOR UPDATE`, id,
	)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", MapError(err))
	}
	return e, nil
}

func (r *ExpenseRepository) Update(ctx context.Context, tx *sql.Tx, e *domain.Expense) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET
			name = $1, category_id = $2, account_id = $3, amount = $4, payee = $5,
			receipt_no = $6, maintenance_agreement_id = $7, expense_date = $8, updated_at = $9
		WHERE id = $10`,
		e.Name, e.CategoryID, e.AccountID, e.Amount, e.Payee,
		e.ReceiptNo, e.MaintenanceAgreementID, e.ExpenseDate, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", MapError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", MapError(err))
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", MapError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", MapError(err))
	}
	if rows == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *ExpenseRepository) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	var (
		conds []string
		args  []any
	)
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", MapError(err))
	}
	defer rows.Close()

	expenses := []domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", MapError(err))
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", MapError(err))
	}
	return expenses, nil
}

func scanExpense(s scanner) (*domain.Expense, error) {
	var (
		e         domain.Expense
		agreement uuid.NullUUID
	)
	err := s.Scan(
		&e.ID, &e.Name, &e.CategoryID, &e.AccountID, &e.Amount, &e.Payee, &e.ReceiptNo,
		&agreement, &e.ExpenseDate, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.MaintenanceAgreementID = nullUUIDPtr(agreement)
	return &e, nil
}
