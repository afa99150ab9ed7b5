package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "INCOME"
	TransactionTypeExpense  TransactionType = "EXPENSE"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// TransactionSource names the subledger that created a transaction.
type TransactionSource string

const (
	SourceManual   TransactionSource = "MANUAL"
	SourceRent     TransactionSource = "RENT"
	SourceExpense  TransactionSource = "EXPENSE"
	SourceTransfer TransactionSource = "TRANSFER"
)

func (s TransactionSource) IsValid() bool {
	switch s {
	case SourceManual, SourceRent, SourceExpense, SourceTransfer:
		return true
	}
	return false
}

// ParseSource upper-cases s and defaults an empty value to MANUAL.
func ParseSource(s string) TransactionSource {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return SourceManual
	}
	return TransactionSource(s)
}

type Transaction struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	RelatedAccountID *uuid.UUID
	Type             TransactionType
	Source           TransactionSource
	RelatedEntityID  *uuid.UUID
	Amount           decimal.Decimal
	Description      string
	Canceled         bool
	CanceledAt       *time.Time
	CreatedBy        *uuid.UUID
	CreatedAt        time.Time
}

// Effect returns the signed balance change the transaction applied to
// accountID while it is active.
func (t *Transaction) Effect(accountID uuid.UUID) decimal.Decimal {
	switch t.Type {
	case TransactionTypeIncome:
		if t.AccountID == accountID {
			return t.Amount
		}
	case TransactionTypeExpense:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
	case TransactionTypeTransfer:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
		if t.RelatedAccountID != nil && *t.RelatedAccountID == accountID {
			return t.Amount
		}
	}
	return decimal.Zero
}

// AccountIDs lists every account the transaction touches.
func (t *Transaction) AccountIDs() []uuid.UUID {
	ids := []uuid.UUID{t.AccountID}
	if t.RelatedAccountID != nil {
		ids = append(ids, *t.RelatedAccountID)
	}
	return ids
}

type TransactionFilter struct {
	AccountID *uuid.UUID
	Type      *TransactionType
	Source    *TransactionSource
	Canceled  *bool
	Limit     int
	Offset    int
}
