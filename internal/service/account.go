package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	List(ctx context.Context, active *bool) ([]domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	Deactivate(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Reconcile(ctx context.Context) ([]domain.Reconciliation, error)
}

type AccountService struct {
	accounts accountRepo
}

func NewAccountService(accounts accountRepo) *AccountService {
	return &AccountService{accounts: accounts}
}

type CreateAccountRequest struct {
	Name           string
	Kind           domain.AccountKind
	OpeningBalance decimal.Decimal
}

func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("CreateAccount: name is required: %w", domain.ErrInvalidRequest)
	}
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("CreateAccount: unknown kind %q: %w", req.Kind, domain.ErrInvalidRequest)
	}
	if !domain.WithinLimit(req.OpeningBalance) {
		return nil, fmt.Errorf("CreateAccount: opening balance out of range: %w", domain.ErrInvalidAmount)
	}
	opening := domain.Quantize(req.OpeningBalance)
	if opening.IsNegative() {
		return nil, fmt.Errorf("CreateAccount: opening balance: %w", domain.ErrInvalidAmount)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             uuid.New(),
		Name:           name,
		Kind:           req.Kind,
		Balance:        opening,
		OpeningBalance: opening,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	log.Info("account created",
		"account_id", account.ID,
		"name", account.Name,
		"kind", account.Kind,
		"opening_balance", domain.FormatMoney(opening),
	)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, active *bool) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// DeactivateAccount hides the account from new postings. Its balance and
// history are kept.
func (s *AccountService) DeactivateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.Deactivate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("DeactivateAccount: %w", err)
	}

	logging.FromContext(ctx).Info("account deactivated", "account_id", id)
	return account, nil
}

func (s *AccountService) Reconcile(ctx context.Context) ([]domain.Reconciliation, error) {
	report, err := s.accounts.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	log := logging.FromContext(ctx)
	for _, r := range report {
		if !r.Balanced() {
			log.Warn("account balance drift",
				"account_id", r.AccountID,
				"stored", domain.FormatMoney(r.Stored),
				"expected", domain.FormatMoney(r.Expected),
				"drift", domain.FormatMoney(r.Drift()),
			)
		}
	}
	return report, nil
}
