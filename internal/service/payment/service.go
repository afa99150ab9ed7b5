package payment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/service/ledger"
)

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error)
	MarkCanceled(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time, reason *string) error
	List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
}

type rentRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RentObligation, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.RentStatus) error
}

type ledgerEngine interface {
	LockAccounts(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error)
	ApplyBalance(ctx context.Context, tx *sql.Tx, acct *domain.Account, delta decimal.Decimal) error
	PostIncome(ctx context.Context, tx *sql.Tx, acct *domain.Account, p ledger.Posting) (*domain.Transaction, error)
	CancelLinked(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// Service settles rent obligations into accounts and reverses those
// settlements.
type Service struct {
	payments paymentRepo
	rents    rentRepo
	engine   ledgerEngine
	db       txBeginner
}

func NewService(payments paymentRepo, rents rentRepo, engine ledgerEngine, db txBeginner) *Service {
	return &Service{
		payments: payments,
		rents:    rents,
		engine:   engine,
		db:       db,
	}
}

type CreateRequest struct {
	RentObligationID uuid.UUID
	AccountID        uuid.UUID
	Amount           decimal.Decimal
	LateFeeAmount    decimal.Decimal
	PaymentDate      *time.Time
	ReferenceNo      *string
	CreatedBy        *uuid.UUID
}

func (r CreateRequest) validate() error {
	if r.RentObligationID == uuid.Nil {
		return fmt.Errorf("rent_obligation_id is required: %w", domain.ErrInvalidRequest)
	}
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("account_id is required: %w", domain.ErrInvalidRequest)
	}
	if !domain.ValidAmount(r.Amount) {
		return fmt.Errorf("amount must be positive and in range: %w", domain.ErrInvalidRequest)
	}
	if !domain.WithinLimit(r.LateFeeAmount) || domain.Quantize(r.LateFeeAmount).IsNegative() {
		return fmt.Errorf("late_fee_amount must be in range and not negative: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payment, *domain.Account, error) {
	if err := req.validate(); err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}
	defer tx.Rollback()

	rent, err := s.rents.GetForUpdate(ctx, tx, req.RentObligationID)
	if err != nil {
		return nil, nil, fmt.Errorf("Create: rent obligation: %w", err)
	}
	if rent.Status == domain.RentStatusPaid {
		return nil, nil, fmt.Errorf("Create: rent %s: %w", rent.ID, domain.ErrRentAlreadyPaid)
	}

	locked, err := s.engine.LockAccounts(ctx, tx, req.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}
	acct := locked[req.AccountID]
	if err := ledger.RequireActive(acct); err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:               uuid.New(),
		RentObligationID: rent.ID,
		OwnerID:          rent.OwnerID,
		AccountID:        acct.ID,
		Amount:           domain.Quantize(req.Amount),
		LateFeeAmount:    domain.Quantize(req.LateFeeAmount),
		PaymentDate:      now,
		ReferenceNo:      req.ReferenceNo,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.PaymentDate != nil {
		p.PaymentDate = req.PaymentDate.UTC()
	}

	rentID := rent.ID
	t, err := s.engine.PostIncome(ctx, tx, acct, ledger.Posting{
		Amount:          p.Total(),
		Source:          domain.SourceRent,
		RelatedEntityID: &rentID,
		Description:     "Rent " + rent.Period(),
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}

	if err := s.rents.UpdateStatus(ctx, tx, rent.ID, domain.RentStatusPaid); err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("rent payment recorded",
		"payment_id", p.ID,
		"rent_obligation_id", rent.ID,
		"transaction_id", t.ID,
		"account_id", acct.ID,
		"total", domain.FormatMoney(p.Total()),
	)
	return p, acct, nil
}

// Cancel reverses a payment: the account is debited, the rent obligation is
// reopened and its RENT transaction is flagged canceled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*domain.Payment, *domain.Account, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	defer tx.Rollback()

	p, err := s.payments.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	if p.Canceled {
		return nil, nil, fmt.Errorf("Cancel: %w", domain.ErrAlreadyCanceled)
	}

	rent, err := s.rents.GetForUpdate(ctx, tx, p.RentObligationID)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: rent obligation: %w", err)
	}

	locked, err := s.engine.LockAccounts(ctx, tx, p.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	acct := locked[p.AccountID]

	if err := s.engine.ApplyBalance(ctx, tx, acct, p.Total().Neg()); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	if err := s.rents.UpdateStatus(ctx, tx, rent.ID, domain.RentStatusUnpaid); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	if _, err := s.engine.CancelLinked(ctx, tx, domain.SourceRent, rent.ID); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	now := time.Now().UTC()
	if err := s.payments.MarkCanceled(ctx, tx, p.ID, now, reason); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	p.Canceled = true
	p.CanceledAt = &now
	p.CancellationReason = reason
	p.UpdatedAt = now

	logging.FromContext(ctx).Info("rent payment canceled",
		"payment_id", p.ID,
		"rent_obligation_id", rent.ID,
		"account_id", acct.ID,
		"total", domain.FormatMoney(p.Total()),
	)
	return p, acct, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return payments, nil
}
