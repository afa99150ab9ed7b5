package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/service/ledger"
)

type ledgerEngine interface {
	RecordIncome(ctx context.Context, req ledger.EntryRequest) (*domain.Transaction, *domain.Account, error)
	RecordExpense(ctx context.Context, req ledger.EntryRequest) (*domain.Transaction, *domain.Account, error)
	RecordTransfer(ctx context.Context, req ledger.TransferRequest) (*domain.Transaction, *domain.Account, *domain.Account, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Transaction, []*domain.Account, error)
}

type transactionReader interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error)
}

type TransactionHandler struct {
	engine ledgerEngine
	txns   transactionReader
}

func NewTransactionHandler(engine ledgerEngine, txns transactionReader) *TransactionHandler {
	return &TransactionHandler{engine: engine, txns: txns}
}

type entryRequest struct {
	AccountID       uuid.UUID  `json:"account_id"`
	Amount          *Money     `json:"amount"`
	Source          string     `json:"source"`
	RelatedEntityID *uuid.UUID `json:"related_entity_id"`
	Description     string     `json:"description"`
}

func (r entryRequest) Validate() []FieldError {
	var errs []FieldError
	if r.AccountID == uuid.Nil {
		errs = append(errs, FieldError{Field: "account_id", Message: "required"})
	}
	errs = append(errs, validateAmount("amount", r.Amount)...)
	switch domain.ParseSource(r.Source) {
	case domain.SourceManual, domain.SourceTransfer:
	default:
		errs = append(errs, FieldError{Field: "source", Message: "must be MANUAL or TRANSFER"})
	}
	if r.RelatedEntityID != nil {
		errs = append(errs, FieldError{Field: "related_entity_id", Message: "not allowed on manual entries"})
	}
	return errs
}

type transferRequest struct {
	FromAccountID uuid.UUID `json:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        *Money    `json:"amount"`
	Description   string    `json:"description"`
}

func (r transferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.FromAccountID == uuid.Nil {
		errs = append(errs, FieldError{Field: "from_account_id", Message: "required"})
	}
	if r.ToAccountID == uuid.Nil {
		errs = append(errs, FieldError{Field: "to_account_id", Message: "required"})
	}
	errs = append(errs, validateAmount("amount", r.Amount)...)
	return errs
}

func validateAmount(field string, m *Money) []FieldError {
	if m == nil {
		return []FieldError{{Field: field, Message: "required"}}
	}
	if !m.Decimal().IsPositive() {
		return []FieldError{{Field: field, Message: "must be greater than 0"}}
	}
	return nil
}

type transactionDTO struct {
	ID               uuid.UUID  `json:"id"`
	AccountID        uuid.UUID  `json:"account_id"`
	RelatedAccountID *uuid.UUID `json:"related_account_id"`
	Type             string     `json:"type"`
	Source           string     `json:"source"`
	RelatedEntityID  *uuid.UUID `json:"related_entity_id"`
	Amount           string     `json:"amount"`
	Description      string     `json:"description"`
	IsCanceled       bool       `json:"is_canceled"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty"`
	CreatedBy        *uuid.UUID `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:               t.ID,
		AccountID:        t.AccountID,
		RelatedAccountID: t.RelatedAccountID,
		Type:             string(t.Type),
		Source:           string(t.Source),
		RelatedEntityID:  t.RelatedEntityID,
		Amount:           domain.FormatMoney(t.Amount),
		Description:      t.Description,
		IsCanceled:       t.Canceled,
		CanceledAt:       t.CanceledAt,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
	}
}

// postingResult is returned by every ledger command: the transaction plus
// the post-mutation state of each account it touched.
type postingResult struct {
	Transaction transactionDTO `json:"transaction"`
	Accounts    []accountDTO   `json:"accounts"`
}

type transactionPage struct {
	Items  []transactionDTO `json:"items"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
}

func (h *TransactionHandler) RecordIncome(w http.ResponseWriter, r *http.Request) {
	h.recordEntry(w, r, "income", h.engine.RecordIncome)
}

func (h *TransactionHandler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	h.recordEntry(w, r, "expense", h.engine.RecordExpense)
}

type recordFunc func(ctx context.Context, req ledger.EntryRequest) (*domain.Transaction, *domain.Account, error)

func (h *TransactionHandler) recordEntry(w http.ResponseWriter, r *http.Request, kind string, record recordFunc) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, acct, err := record(r.Context(), ledger.EntryRequest{
		AccountID:       req.AccountID,
		Amount:          req.Amount.Decimal(),
		Source:          domain.ParseSource(req.Source),
		RelatedEntityID: req.RelatedEntityID,
		Description:     strings.TrimSpace(req.Description),
		CreatedBy:       actorFrom(r),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn(kind+" posting failed", "error", err, "account_id", req.AccountID)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, postingResult{
		Transaction: toTransactionDTO(txn),
		Accounts:    toAccountDTOs([]*domain.Account{acct}),
	})
}

func (h *TransactionHandler) RecordTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, src, dst, err := h.engine.RecordTransfer(r.Context(), ledger.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount.Decimal(),
		Description:   strings.TrimSpace(req.Description),
		CreatedBy:     actorFrom(r),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer failed", "error", err,
			"from_account_id", req.FromAccountID, "to_account_id", req.ToAccountID)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, postingResult{
		Transaction: toTransactionDTO(txn),
		Accounts:    toAccountDTOs([]*domain.Account{src, dst}),
	})
}

func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	txn, accounts, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction cancel failed", "error", err, "transaction_id", id)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, postingResult{
		Transaction: toTransactionDTO(txn),
		Accounts:    toAccountDTOs(accounts),
	})
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	txn, err := h.txns.GetTransaction(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := domain.TransactionFilter{
		AccountID: q.uuidValue("account_id"),
		Canceled:  q.boolValue("canceled"),
		Limit:     q.intValue("limit"),
		Offset:    q.intValue("offset"),
	}
	if raw := q.stringValue("type"); raw != "" {
		t := domain.TransactionType(strings.ToUpper(raw))
		if !t.IsValid() {
			q.errors = append(q.errors, FieldError{Field: "type", Message: "must be INCOME, EXPENSE or TRANSFER"})
		}
		filter.Type = &t
	}
	if raw := q.stringValue("source"); raw != "" {
		s := domain.ParseSource(raw)
		if !s.IsValid() {
			q.errors = append(q.errors, FieldError{Field: "source", Message: "must be MANUAL, RENT, EXPENSE or TRANSFER"})
		}
		filter.Source = &s
	}
	if len(q.errors) > 0 {
		RespondValidationError(w, q.errors)
		return
	}

	txns, total, err := h.txns.ListTransactions(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transactions", "error", err)
		RespondDomainError(w, err)
		return
	}

	page := transactionPage{
		Items:  make([]transactionDTO, len(txns)),
		Total:  total,
		Offset: filter.Offset,
	}
	for i := range txns {
		page.Items[i] = toTransactionDTO(&txns[i])
	}

	RespondSuccess(w, http.StatusOK, page)
}
