package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

type accountRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error)
	FindActiveByOriginForUpdate(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error)
	MarkCanceled(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
}

type txBeginner interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// Engine is the only writer of account balances. Every mutation pairs a
// balance change with a transaction log write inside one database
// transaction.
type Engine struct {
	accounts      accountRepo
	txns          transactionRepo
	db            txBeginner
	allowNegative bool
}

func NewEngine(accounts accountRepo, txns transactionRepo, db txBeginner, allowNegative bool) *Engine {
	return &Engine{
		accounts:      accounts,
		txns:          txns,
		db:            db,
		allowNegative: allowNegative,
	}
}

func (e *Engine) AllowNegative() bool {
	return e.allowNegative
}

// Posting describes a single-account log entry written by PostIncome or
// PostExpense.
type Posting struct {
	Amount          decimal.Decimal
	Source          domain.TransactionSource
	RelatedEntityID *uuid.UUID
	Description     string
	CreatedBy       *uuid.UUID
}

// LockAccounts takes row locks on the given accounts in ascending id order.
// Duplicate ids are locked once.
func (e *Engine) LockAccounts(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	sorted := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Account, len(sorted))
	for _, id := range sorted {
		acct, err := e.accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("LockAccounts: %w", err)
		}
		result[id] = acct
	}
	return result, nil
}

// ApplyBalance adds delta to a locked account and persists the result. acct
// is updated in place on success.
func (e *Engine) ApplyBalance(ctx context.Context, tx *sql.Tx, acct *domain.Account, delta decimal.Decimal) error {
	next := domain.Quantize(acct.Balance.Add(delta))
	if !e.allowNegative && next.IsNegative() {
		return fmt.Errorf("ApplyBalance: account %s: %w", acct.ID, domain.ErrInsufficientFunds)
	}

	if err := e.accounts.UpdateBalance(ctx, tx, acct.ID, next); err != nil {
		return fmt.Errorf("ApplyBalance: %w", err)
	}
	acct.Balance = next
	acct.UpdatedAt = time.Now().UTC()
	return nil
}

func (e *Engine) PostIncome(ctx context.Context, tx *sql.Tx, acct *domain.Account, p Posting) (*domain.Transaction, error) {
	t, err := e.post(ctx, tx, acct, domain.TransactionTypeIncome, p, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("PostIncome: %w", err)
	}
	return t, nil
}

func (e *Engine) PostExpense(ctx context.Context, tx *sql.Tx, acct *domain.Account, p Posting) (*domain.Transaction, error) {
	t, err := e.post(ctx, tx, acct, domain.TransactionTypeExpense, p, p.Amount.Neg())
	if err != nil {
		return nil, fmt.Errorf("PostExpense: %w", err)
	}
	return t, nil
}

func (e *Engine) post(ctx context.Context, tx *sql.Tx, acct *domain.Account, typ domain.TransactionType, p Posting, delta decimal.Decimal) (*domain.Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if err := e.ApplyBalance(ctx, tx, acct, delta); err != nil {
		return nil, err
	}
	return e.AppendEntry(ctx, tx, acct.ID, typ, p)
}

// AppendEntry writes a log row without touching any balance. Callers use it
// when the balance change was already applied through ApplyBalance.
func (e *Engine) AppendEntry(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, typ domain.TransactionType, p Posting) (*domain.Transaction, error) {
	source := p.Source
	if source == "" {
		source = domain.SourceManual
	}
	t := &domain.Transaction{
		ID:              uuid.New(),
		AccountID:       accountID,
		Type:            typ,
		Source:          source,
		RelatedEntityID: p.RelatedEntityID,
		Amount:          domain.Quantize(p.Amount),
		Description:     p.Description,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.txns.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("AppendEntry: %w", err)
	}
	return t, nil
}

// CancelLinked flags the active transaction produced by a subledger entity as
// canceled. It does not touch balances. A missing linked row is not an error
// and yields nil.
func (e *Engine) CancelLinked(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error) {
	t, err := e.FindLinked(ctx, tx, source, entityID)
	if err != nil {
		return nil, fmt.Errorf("CancelLinked: %w", err)
	}
	if t == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	if err := e.txns.MarkCanceled(ctx, tx, t.ID, now); err != nil {
		return nil, fmt.Errorf("CancelLinked: %w", err)
	}
	t.Canceled = true
	t.CanceledAt = &now
	return t, nil
}

// FindLinked locks the active transaction a subledger entity produced, or
// returns nil when there is none.
func (e *Engine) FindLinked(ctx context.Context, tx *sql.Tx, source domain.TransactionSource, entityID uuid.UUID) (*domain.Transaction, error) {
	t, err := e.txns.FindActiveByOriginForUpdate(ctx, tx, source, entityID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("FindLinked: %w", err)
	}
	return t, nil
}

// RequireActive reports a deactivated account as not found.
func RequireActive(acct *domain.Account) error {
	if !acct.Active {
		return fmt.Errorf("account %s inactive: %w", acct.ID, domain.ErrNotFound)
	}
	return nil
}
