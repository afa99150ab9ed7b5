package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/repository"
)

type EntryRequest struct {
	AccountID       uuid.UUID
	Amount          decimal.Decimal
	Source          domain.TransactionSource
	RelatedEntityID *uuid.UUID
	Description     string
	CreatedBy       *uuid.UUID
}

func (r EntryRequest) validate() error {
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("account_id is required: %w", domain.ErrInvalidRequest)
	}
	if !domain.ValidAmount(r.Amount) {
		return domain.ErrInvalidAmount
	}
	if r.Source != "" && !r.Source.IsValid() {
		return fmt.Errorf("unknown source %q: %w", r.Source, domain.ErrInvalidRequest)
	}
	if r.Source == domain.SourceRent || r.Source == domain.SourceExpense {
		return fmt.Errorf("%s entries are posted by their subledger: %w", r.Source, domain.ErrInvalidRequest)
	}
	if r.RelatedEntityID != nil {
		return fmt.Errorf("related_entity_id is set by subledgers only: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func (r EntryRequest) posting() Posting {
	return Posting{
		Amount:          domain.Quantize(r.Amount),
		Source:          r.Source,
		RelatedEntityID: r.RelatedEntityID,
		Description:     r.Description,
		CreatedBy:       r.CreatedBy,
	}
}

type TransferRequest struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Description   string
	CreatedBy     *uuid.UUID
}

func (r TransferRequest) validate() error {
	if r.FromAccountID == uuid.Nil || r.ToAccountID == uuid.Nil {
		return fmt.Errorf("both accounts are required: %w", domain.ErrInvalidRequest)
	}
	if r.FromAccountID == r.ToAccountID {
		return domain.ErrSelfTransfer
	}
	if !domain.ValidAmount(r.Amount) {
		return domain.ErrInvalidAmount
	}
	return nil
}

func (e *Engine) RecordIncome(ctx context.Context, req EntryRequest) (*domain.Transaction, *domain.Account, error) {
	t, acct, err := e.recordEntry(ctx, req, e.PostIncome)
	if err != nil {
		return nil, nil, fmt.Errorf("RecordIncome: %w", err)
	}

	logging.FromContext(ctx).Info("income recorded",
		"transaction_id", t.ID,
		"account_id", acct.ID,
		"amount", domain.FormatMoney(t.Amount),
		"source", t.Source,
	)
	return t, acct, nil
}

func (e *Engine) RecordExpense(ctx context.Context, req EntryRequest) (*domain.Transaction, *domain.Account, error) {
	t, acct, err := e.recordEntry(ctx, req, e.PostExpense)
	if err != nil {
		return nil, nil, fmt.Errorf("RecordExpense: %w", err)
	}

	logging.FromContext(ctx).Info("expense recorded",
		"transaction_id", t.ID,
		"account_id", acct.ID,
		"amount", domain.FormatMoney(t.Amount),
		"source", t.Source,
	)
	return t, acct, nil
}

type postFunc func(ctx context.Context, tx *sql.Tx, acct *domain.Account, p Posting) (*domain.Transaction, error)

func (e *Engine) recordEntry(ctx context.Context, req EntryRequest, post postFunc) (*domain.Transaction, *domain.Account, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	locked, err := e.LockAccounts(ctx, tx, req.AccountID)
	if err != nil {
		return nil, nil, err
	}
	acct := locked[req.AccountID]
	if err := RequireActive(acct); err != nil {
		return nil, nil, err
	}

	t, err := post(ctx, tx, acct, req.posting())
	if err != nil {
		return nil, nil, err
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, err
	}
	return t, acct, nil
}

func (e *Engine) RecordTransfer(ctx context.Context, req TransferRequest) (*domain.Transaction, *domain.Account, *domain.Account, error) {
	if err := req.validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}
	amount := domain.Quantize(req.Amount)

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}
	defer tx.Rollback()

	locked, err := e.LockAccounts(ctx, tx, req.FromAccountID, req.ToAccountID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}
	src, dst := locked[req.FromAccountID], locked[req.ToAccountID]

	if err := RequireActive(src); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: source: %w", err)
	}
	if err := RequireActive(dst); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: destination: %w", err)
	}

	if err := e.ApplyBalance(ctx, tx, src, amount.Neg()); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}
	if err := e.ApplyBalance(ctx, tx, dst, amount); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}

	dstID := dst.ID
	t := &domain.Transaction{
		ID:               uuid.New(),
		AccountID:        src.ID,
		RelatedAccountID: &dstID,
		Type:             domain.TransactionTypeTransfer,
		Source:           domain.SourceTransfer,
		Amount:           amount,
		Description:      req.Description,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        time.Now().UTC(),
	}
	if err := e.txns.Create(ctx, tx, t); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, nil, fmt.Errorf("RecordTransfer: %w", err)
	}

	logging.FromContext(ctx).Info("transfer recorded",
		"transaction_id", t.ID,
		"from_account_id", src.ID,
		"to_account_id", dst.ID,
		"amount", domain.FormatMoney(amount),
	)
	return t, src, dst, nil
}

// Cancel reverses the balance effect of a transaction and flags it canceled.
// Rows linked to an expense or a rent payment must be canceled through that
// subledger instead.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (*domain.Transaction, []*domain.Account, error) {
	peek, err := e.txns.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	if peek.Canceled {
		return nil, nil, fmt.Errorf("Cancel: %w", domain.ErrAlreadyCanceled)
	}
	if isSubledgerOwned(peek) {
		return nil, nil, fmt.Errorf("Cancel: %s transaction is managed by its subledger: %w", peek.Source, domain.ErrInvalidRequest)
	}

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	defer tx.Rollback()

	locked, err := e.LockAccounts(ctx, tx, peek.AccountIDs()...)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	t, err := e.txns.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	if t.Canceled {
		return nil, nil, fmt.Errorf("Cancel: %w", domain.ErrAlreadyCanceled)
	}
	if !sameAccounts(peek, t) {
		return nil, nil, fmt.Errorf("Cancel: accounts changed while locking: %w", domain.ErrConflict)
	}

	accounts, err := e.reverse(ctx, tx, t, locked)
	if err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	now := time.Now().UTC()
	if err := e.txns.MarkCanceled(ctx, tx, t.ID, now); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}

	if err := repository.Commit(tx); err != nil {
		return nil, nil, fmt.Errorf("Cancel: %w", err)
	}
	t.Canceled = true
	t.CanceledAt = &now

	logging.FromContext(ctx).Info("transaction canceled",
		"transaction_id", t.ID,
		"type", t.Type,
		"amount", domain.FormatMoney(t.Amount),
	)
	return t, accounts, nil
}

// reverse applies the inverse of t's effect on every account it touched.
func (e *Engine) reverse(ctx context.Context, tx *sql.Tx, t *domain.Transaction, locked map[uuid.UUID]*domain.Account) ([]*domain.Account, error) {
	ids := t.AccountIDs()
	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		acct := locked[id]
		if err := e.ApplyBalance(ctx, tx, acct, t.Effect(id).Neg()); err != nil {
			return nil, fmt.Errorf("reverse: %w", err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func isSubledgerOwned(t *domain.Transaction) bool {
	if t.RelatedEntityID == nil {
		return false
	}
	return t.Source == domain.SourceExpense || t.Source == domain.SourceRent
}

func sameAccounts(a, b *domain.Transaction) bool {
	if a.AccountID != b.AccountID {
		return false
	}
	if (a.RelatedAccountID == nil) != (b.RelatedAccountID == nil) {
		return false
	}
	return a.RelatedAccountID == nil || *a.RelatedAccountID == *b.RelatedAccountID
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
