package expense

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/service/ledger"
)

type expenseRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.Expense) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Expense, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Expense, error)
	Update(ctx context.Context, tx *sql.Tx, e *domain.Expense) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
}

type categoryRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
}

type transactionRepo interface {
	Relink(ctx context.Context, tx *sql.Tx, id, accountID uuid.UUID, amount decimal.Decimal, description string) error
}

type ledgerEngine interface {
	LockAccounts(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error)
	ApplyBalance(ctx context.Context, tx *sql.Tx, acct *domain.Account, delta decimal.Decimal) error
	PostExpense(ctx context.Context, tx *sql.Tx, acct *domain.Account, p ledger.Posting) (*domain.Transaction, error)
	AppendEntry(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, typ domain.TransactionType, p ledger.Posting) (*domain.Transaction, error)
	FindLinked(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error)
	CancelLinked(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// Service keeps categorized expenses in step with their EXPENSE transaction.
type Service struct {
	expenses   expenseRepo
	categories categoryRepo
	txns       transactionRepo
	engine     ledgerEngine
	db         txBeginner
}

func NewService(
	expenses expenseRepo,
	categories categoryRepo,
	txns transactionRepo,
	engine ledgerEngine,
	db txBeginner,
) *Service {
	return &Service{
		expenses:   expenses,
		categories: categories,
		txns:       txns,
		engine:     engine,
		db:         db,
	}
}

type CreateRequest struct {
	Name                   string
	CategoryID             uuid.UUID
	AccountID              uuid.UUID
	Amount                 decimal.Decimal
	Payee                  *string
	ReceiptNo              *string
	MaintenanceAgreementID *uuid.UUID
	ExpenseDate            *time.Time
	CreatedBy              *uuid.UUID
}

func (r CreateRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidRequest)
	}
	if r.CategoryID == uuid.Nil {
		return fmt.Errorf("category_id is required: %w", domain.ErrInvalidRequest)
	}
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("account_id is required: %w", domain.ErrInvalidRequest)
	}
	if !domain.ValidAmount(r.Amount) {
		return fmt.Errorf("amount must be positive: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// UpdateRequest carries the fields to change; nil fields keep their value.
type UpdateRequest struct {
	Name                   *string
	CategoryID             *uuid.UUID
	AccountID              *uuid.UUID
	Amount                 *decimal.Decimal
	Payee                  *string
	ReceiptNo              *string
	MaintenanceAgreementID *uuid.UUID
	ExpenseDate            *time.Time
	UpdatedBy              *uuid.UUID
}

func (r UpdateRequest) validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("name must not be empty: %w", domain.ErrInvalidRequest)
	}
	if r.CategoryID != nil && *r.CategoryID == uuid.Nil {
		return fmt.Errorf("category_id must not be empty: %w", domain.ErrInvalidRequest)
	}
	if r.AccountID != nil && *r.AccountID == uuid.Nil {
		return fmt.Errorf("account_id must not be empty: %w", domain.ErrInvalidRequest)
	}
	if r.Amount != nil && !domain.ValidAmount(*r.Amount) {
		return fmt.Errorf("amount must be positive: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Expense, *domain.Transaction, *domain.Account, error) {
	if err := req.validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.engine.LockAccounts(ctx, tx, req.AccountID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}
	acct := locked[req.AccountID]
	if err := ledger.RequireActive(acct); err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	exp := &domain.Expense{
		ID:                     uuid.New(),
		Name:                   strings.TrimSpace(req.Name),
		CategoryID:             req.CategoryID,
		AccountID:              req.AccountID,
		Amount:                 domain.Quantize(req.Amount),
		Payee:                  req.Payee,
		ReceiptNo:              req.ReceiptNo,
		MaintenanceAgreementID: req.MaintenanceAgreementID,
		ExpenseDate:            req.ExpenseDate,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.expenses.Create(ctx, tx, exp); err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}

	t, err := s.engine.PostExpense(ctx, tx, acct, s.posting(exp, req.CreatedBy))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, nil, fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("expense created",
		"expense_id", exp.ID,
		"transaction_id", t.ID,
		"account_id", acct.ID,
		"amount", domain.FormatMoney(exp.Amount),
	)
	return exp, t, acct, nil
}

// Update edits an expense and moves money to match. A changed account gets
// the old amount credited back and the new amount debited from the new one.
// The returned accounts start with the expense's current account, followed
// by the previous one when it changed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*domain.Expense, *domain.Transaction, []*domain.Account, error) {
	if err := req.validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, *req.CategoryID); err != nil {
			return nil, nil, nil, fmt.Errorf("Update: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}
	defer tx.Rollback()

	exp, err := s.expenses.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}
	oldAccountID, oldAmount := exp.AccountID, exp.Amount
	applyUpdate(exp, req)

	locked, err := s.engine.LockAccounts(ctx, tx, oldAccountID, exp.AccountID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}
	acct := locked[exp.AccountID]
	touched := []*domain.Account{acct}

	if exp.AccountID != oldAccountID {
		if err := ledger.RequireActive(acct); err != nil {
			return nil, nil, nil, fmt.Errorf("Update: new account: %w", err)
		}
		if err := s.engine.ApplyBalance(ctx, tx, locked[oldAccountID], oldAmount); err != nil {
			return nil, nil, nil, fmt.Errorf("Update: credit old account: %w", err)
		}
		if err := s.engine.ApplyBalance(ctx, tx, acct, exp.Amount.Neg()); err != nil {
			return nil, nil, nil, fmt.Errorf("Update: debit new account: %w", err)
		}
		touched = append(touched, locked[oldAccountID])
	} else if delta := exp.Amount.Sub(oldAmount); !delta.IsZero() {
		if delta.IsPositive() {
			if err := ledger.RequireActive(acct); err != nil {
				return nil, nil, nil, fmt.Errorf("Update: %w", err)
			}
		}
		if err := s.engine.ApplyBalance(ctx, tx, acct, delta.Neg()); err != nil {
			return nil, nil, nil, fmt.Errorf("Update: %w", err)
		}
	}

	exp.UpdatedAt = time.Now().UTC()
	if err := s.expenses.Update(ctx, tx, exp); err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}

	t, err := s.syncLinked(ctx, tx, exp, req.UpdatedBy)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, nil, fmt.Errorf("Update: %w", err)
	}

	logging.FromContext(ctx).Info("expense updated",
		"expense_id", exp.ID,
		"transaction_id", t.ID,
		"account_id", exp.AccountID,
		"previous_account_id", oldAccountID,
		"amount", domain.FormatMoney(exp.Amount),
		"previous_amount", domain.FormatMoney(oldAmount),
	)
	return exp, t, touched, nil
}

// syncLinked points the expense's transaction at its current account and
// amount, creating the row if it is missing.
func (s *Service) syncLinked(ctx context.Context, tx *sql.Tx, exp *domain.Expense, actor *uuid.UUID) (*domain.Transaction, error) {
	t, err := s.engine.FindLinked(ctx, tx, domain.SourceExpense, exp.ID)
	if err != nil {
		return nil, fmt.Errorf("syncLinked: %w", err)
	}

	if t == nil {
		t, err = s.engine.AppendEntry(ctx, tx, exp.AccountID, domain.TransactionTypeExpense, s.posting(exp, actor))
		if err != nil {
			return nil, fmt.Errorf("syncLinked: %w", err)
		}
		return t, nil
	}

	if err := s.txns.Relink(ctx, tx, t.ID, exp.AccountID, exp.Amount, exp.Name); err != nil {
		return nil, fmt.Errorf("syncLinked: %w", err)
	}
	t.AccountID = exp.AccountID
	t.Amount = exp.Amount
	t.Description = exp.Name
	return t, nil
}

// Delete credits the expense amount back, cancels its transaction and
// removes the expense. The account is credited even when deactivated.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}
	defer tx.Rollback()

	exp, err := s.expenses.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}

	locked, err := s.engine.LockAccounts(ctx, tx, exp.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}
	acct := locked[exp.AccountID]

	if err := s.engine.ApplyBalance(ctx, tx, acct, exp.Amount); err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}

	canceled, err := s.engine.CancelLinked(ctx, tx, domain.SourceExpense, exp.ID)
	if err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}

	if err := s.expenses.Delete(ctx, tx, exp.ID); err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}

	log := logging.FromContext(ctx)
	if canceled == nil {
		log.Warn("expense deleted without an active transaction", "expense_id", exp.ID)
	}
	log.Info("expense deleted",
		"expense_id", exp.ID,
		"account_id", acct.ID,
		"amount", domain.FormatMoney(exp.Amount),
	)
	return acct, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	exp, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return exp, nil
}

func (s *Service) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	expenses, err := s.expenses.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return expenses, nil
}

func (s *Service) checkCategory(ctx context.Context, id uuid.UUID) error {
	cat, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("checkCategory: %w", err)
	}
	if !cat.Active {
		return fmt.Errorf("checkCategory: category %s inactive: %w", id, domain.ErrNotFound)
	}
	if cat.Kind != domain.CategoryKindExpense {
		return fmt.Errorf("checkCategory: category %s is not an expense category: %w", id, domain.ErrInvalidRequest)
	}
	return nil
}

func (s *Service) posting(exp *domain.Expense, actor *uuid.UUID) ledger.Posting {
	id := exp.ID
	return ledger.Posting{
		Amount:          exp.Amount,
		Source:          domain.SourceExpense,
		RelatedEntityID: &id,
		Description:     exp.Name,
		CreatedBy:       actor,
	}
}

func applyUpdate(exp *domain.Expense, req UpdateRequest) {
	if req.Name != nil {
		exp.Name = strings.TrimSpace(*req.Name)
	}
	if req.CategoryID != nil {
		exp.CategoryID = *req.CategoryID
	}
	if req.AccountID != nil {
		exp.AccountID = *req.AccountID
	}
	if req.Amount != nil {
		exp.Amount = domain.Quantize(*req.Amount)
	}
	if req.Payee != nil {
		exp.Payee = req.Payee
	}
	if req.ReceiptNo != nil {
		exp.ReceiptNo = req.ReceiptNo
	}
	if req.MaintenanceAgreementID != nil {
		exp.MaintenanceAgreementID = req.MaintenanceAgreementID
	}
	if req.ExpenseDate != nil {
		exp.ExpenseDate = req.ExpenseDate
	}
}
