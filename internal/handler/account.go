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
	"github.com/josh-kwaku/building-ledger/internal/service"
)

type accountService interface {
	CreateAccount(ctx context.Context, req service.CreateAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, active *bool) ([]domain.Account, error)
	DeactivateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Reconcile(ctx context.Context) ([]domain.Reconciliation, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type createAccountRequest struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	OpeningBalance *Money `json:"opening_balance"`
}

func (r createAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if r.Kind == "" {
		errs = append(errs, FieldError{Field: "kind", Message: "required"})
	} else if !domain.AccountKind(strings.ToUpper(r.Kind)).IsValid() {
		errs = append(errs, FieldError{Field: "kind", Message: "must be CASH or BANK"})
	}
	if r.OpeningBalance != nil && r.OpeningBalance.Decimal().IsNegative() {
		errs = append(errs, FieldError{Field: "opening_balance", Message: "must not be negative"})
	}
	return errs
}

type accountDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	Balance        string    `json:"balance"`
	OpeningBalance string    `json:"opening_balance"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:             a.ID,
		Name:           a.Name,
		Kind:           string(a.Kind),
		Balance:        domain.FormatMoney(a.Balance),
		OpeningBalance: domain.FormatMoney(a.OpeningBalance),
		IsActive:       a.Active,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAccountDTOs(accounts []*domain.Account) []accountDTO {
	dtos := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		if a != nil {
			dtos = append(dtos, toAccountDTO(a))
		}
	}
	return dtos
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), service.CreateAccountRequest{
		Name:           req.Name,
		Kind:           domain.AccountKind(strings.ToUpper(req.Kind)),
		OpeningBalance: moneyOrZero(req.OpeningBalance),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to create account", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%s", account.ID))
	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	active := q.boolValue("active")
	if len(q.errors) > 0 {
		RespondValidationError(w, q.errors)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), active)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	account, err := h.accounts.DeactivateAccount(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account deactivation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

type reconciliationDTO struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Stored    string    `json:"stored_balance"`
	Expected  string    `json:"expected_balance"`
	Drift     string    `json:"drift"`
	Balanced  bool      `json:"balanced"`
}

type reconciliationReport struct {
	Balanced bool                `json:"balanced"`
	Accounts []reconciliationDTO `json:"accounts"`
}

func (h *AccountHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.accounts.Reconcile(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("reconciliation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := reconciliationReport{Balanced: true, Accounts: make([]reconciliationDTO, len(report))}
	for i, rec := range report {
		out.Accounts[i] = reconciliationDTO{
			AccountID: rec.AccountID,
			Name:      rec.Name,
			Stored:    domain.FormatMoney(rec.Stored),
			Expected:  domain.FormatMoney(rec.Expected),
			Drift:     domain.FormatMoney(rec.Drift()),
			Balanced:  rec.Balanced(),
		}
		if !rec.Balanced() {
			out.Balanced = false
		}
	}

	RespondSuccess(w, http.StatusOK, out)
}
