package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/service/expense"
)

type expenseService interface {
	Create(ctx context.Context, req expense.CreateRequest) (*domain.Expense, *domain.Transaction, *domain.Account, error)
	Update(ctx context.Context, id uuid.UUID, req expense.UpdateRequest) (*domain.Expense, *domain.Transaction, []*domain.Account, error)
	Delete(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Expense, error)
	List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
}

type ExpenseHandler struct {
	expenses expenseService
}

func NewExpenseHandler(expenses expenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

type createExpenseRequest struct {
	Name                   string     `json:"name"`
	CategoryID             uuid.UUID  `json:"category_id"`
	AccountID              uuid.UUID  `json:"account_id"`
	Amount                 *Money     `json:"amount"`
	Payee                  *string    `json:"payee"`
	ReceiptNo              *string    `json:"receipt_no"`
	MaintenanceAgreementID *uuid.UUID `json:"maintenance_agreement_id"`
	ExpenseDate            *Date      `json:"expense_date"`
}

func (r createExpenseRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if r.CategoryID == uuid.Nil {
		errs = append(errs, FieldError{Field: "category_id", Message: "required"})
	}
	if r.AccountID == uuid.Nil {
		errs = append(errs, FieldError{Field: "account_id", Message: "required"})
	}
	errs = append(errs, validateAmount("amount", r.Amount)...)
	return errs
}

// updateExpenseRequest carries only the fields being changed.
type updateExpenseRequest struct {
	Name                   *string    `json:"name"`
	CategoryID             *uuid.UUID `json:"category_id"`
	AccountID              *uuid.UUID `json:"account_id"`
	Amount                 *Money     `json:"amount"`
	Payee                  *string    `json:"payee"`
	ReceiptNo              *string    `json:"receipt_no"`
	MaintenanceAgreementID *uuid.UUID `json:"maintenance_agreement_id"`
	ExpenseDate            *Date      `json:"expense_date"`
}

func (r updateExpenseRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "must not be empty"})
	}
	if r.CategoryID != nil && *r.CategoryID == uuid.Nil {
		errs = append(errs, FieldError{Field: "category_id", Message: "must be a valid UUID"})
	}
	if r.AccountID != nil && *r.AccountID == uuid.Nil {
		errs = append(errs, FieldError{Field: "account_id", Message: "must be a valid UUID"})
	}
	if r.Amount != nil {
		errs = append(errs, validateAmount("amount", r.Amount)...)
	}
	return errs
}

type expenseDTO struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name"`
	CategoryID             uuid.UUID  `json:"category_id"`
	AccountID              uuid.UUID  `json:"account_id"`
	Amount                 string     `json:"amount"`
	Payee                  *string    `json:"payee"`
	ReceiptNo              *string    `json:"receipt_no"`
	MaintenanceAgreementID *uuid.UUID `json:"maintenance_agreement_id"`
	ExpenseDate            *string    `json:"expense_date"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func toExpenseDTO(e *domain.Expense) expenseDTO {
	dto := expenseDTO{
		ID:                     e.ID,
		Name:                   e.Name,
		CategoryID:             e.CategoryID,
		AccountID:              e.AccountID,
		Amount:                 domain.FormatMoney(e.Amount),
		Payee:                  e.Payee,
		ReceiptNo:              e.ReceiptNo,
		MaintenanceAgreementID: e.MaintenanceAgreementID,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
	if e.ExpenseDate != nil {
		d := e.ExpenseDate.Format(dateLayout)
		dto.ExpenseDate = &d
	}
	return dto
}

type expenseResult struct {
	Expense     expenseDTO      `json:"expense"`
	Transaction *transactionDTO `json:"transaction,omitempty"`
	Accounts    []accountDTO    `json:"accounts"`
}

func newExpenseResult(e *domain.Expense, t *domain.Transaction, accounts []*domain.Account) expenseResult {
	res := expenseResult{Expense: toExpenseDTO(e), Accounts: toAccountDTOs(accounts)}
	if t != nil {
		dto := toTransactionDTO(t)
		res.Transaction = &dto
	}
	return res
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	exp, txn, acct, err := h.expenses.Create(r.Context(), expense.CreateRequest{
		Name:                   strings.TrimSpace(req.Name),
		CategoryID:             req.CategoryID,
		AccountID:              req.AccountID,
		Amount:                 req.Amount.Decimal(),
		Payee:                  req.Payee,
		ReceiptNo:              req.ReceiptNo,
		MaintenanceAgreementID: req.MaintenanceAgreementID,
		ExpenseDate:            req.ExpenseDate.timePtr(),
		CreatedBy:              actorFrom(r),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("expense creation failed", "error", err, "account_id", req.AccountID)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/expenses/%s", exp.ID))
	RespondSuccess(w, http.StatusCreated, newExpenseResult(exp, txn, []*domain.Account{acct}))
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	upd := expense.UpdateRequest{
		Name:                   req.Name,
		CategoryID:             req.CategoryID,
		AccountID:              req.AccountID,
		Payee:                  req.Payee,
		ReceiptNo:              req.ReceiptNo,
		MaintenanceAgreementID: req.MaintenanceAgreementID,
		ExpenseDate:            req.ExpenseDate.timePtr(),
		UpdatedBy:              actorFrom(r),
	}
	if req.Amount != nil {
		amount := req.Amount.Decimal()
		upd.Amount = &amount
	}

	exp, txn, accounts, err := h.expenses.Update(r.Context(), id, upd)
	if err != nil {
		logging.FromContext(r.Context()).Warn("expense update failed", "error", err, "expense_id", id)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, newExpenseResult(exp, txn, accounts))
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	acct, err := h.expenses.Delete(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("expense deletion failed", "error", err, "expense_id", id)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"deleted": id,
		"account": toAccountDTO(acct),
	})
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	exp, err := h.expenses.Get(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("expense lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toExpenseDTO(exp))
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := domain.ExpenseFilter{
		AccountID:  q.uuidValue("account_id"),
		CategoryID: q.uuidValue("category_id"),
	}
	if len(q.errors) > 0 {
		RespondValidationError(w, q.errors)
		return
	}

	expenses, err := h.expenses.List(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list expenses", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]expenseDTO, len(expenses))
	for i := range expenses {
		dtos[i] = toExpenseDTO(&expenses[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
