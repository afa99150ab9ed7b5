package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const rentColumns = `id, owner_id, month, year, amount, due_date, status, created_at, updated_at`

type RentRepository struct {
	db *sql.DB
}

func NewRentRepository(db *sql.DB) *RentRepository {
	return &RentRepository{db: db}
}

func (r *RentRepository) Create(ctx context.Context, rent *domain.RentObligation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rent_obligations (`+rentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, month, year) DO NOTHING`,
		rent.ID, rent.OwnerID, rent.Month, rent.Year, rent.Amount, rent.DueDate,
		rent.Status, rent.CreatedAt, rent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", MapError(err))
	}
	return nil
}

func (r *RentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rentColumns+` FROM rent_obligations WHERE id = $1`, id,
	)
	rent, err := scanRent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", MapError(err))
	}
	return rent, nil
}

func (r *RentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RentObligation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+rentColumns+` FROM rent_obligations WHERE id = $1 FOR UPDATE`, id,
	)
	rent, err := scanRent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", MapError(err))
	}
	return rent, nil
}

func (r *RentRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.RentStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rent_obligations SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", MapError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", MapError(err))
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanRent(s scanner) (*domain.RentObligation, error) {
	var rent domain.RentObligation
	err := s.Scan(
		&rent.ID, &rent.OwnerID, &rent.Month, &rent.Year, &rent.Amount, &rent.DueDate,
		&rent.Status, &rent.CreatedAt, &rent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rent, nil
}
