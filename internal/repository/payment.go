package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const paymentColumns = `id, rent_obligation_id, owner_id, account_id, amount, late_fee_amount,
	payment_date, reference_no, is_canceled, canceled_at, cancellation_reason,
	created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.RentObligationID, p.OwnerID, p.AccountID, p.Amount, p.LateFeeAmount,
		p.PaymentDate, p.ReferenceNo, p.Canceled, p.CanceledAt, p.CancellationReason,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", MapError(err))
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", MapError(err))
	}
	return p, nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", MapError(err))
	}
	return p, nil
}

func (r *PaymentRepository) MarkCanceled(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time, reason *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET is_canceled = TRUE, canceled_at = $1, cancellation_reason = $2, updated_at = $1
		WHERE id = $3 AND NOT is_canceled`,
		at, reason, id,
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

func (r *PaymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.RentObligationID != nil {
		args = append(args, *filter.RentObligationID)
		conds = append(conds, fmt.Sprintf("rent_obligation_id = $%d", len(args)))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Canceled != nil {
		args = append(args, *filter.Canceled)
		conds = append(conds, fmt.Sprintf("is_canceled = $%d", len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY payment_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", MapError(err))
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", MapError(err))
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", MapError(err))
	}
	return payments, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := s.Scan(
		&p.ID, &p.RentObligationID, &p.OwnerID, &p.AccountID, &p.Amount, &p.LateFeeAmount,
		&p.PaymentDate, &p.ReferenceNo, &p.Canceled, &p.CanceledAt, &p.CancellationReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
