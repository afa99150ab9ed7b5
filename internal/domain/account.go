package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountKindCash AccountKind = "CASH"
	AccountKindBank AccountKind = "BANK"
)

func (k AccountKind) IsValid() bool {
	switch k {
	case AccountKindCash, AccountKindBank:
		return true
	}
	return false
}

type Account struct {
	ID             uuid.UUID
	Name           string
	Kind           AccountKind
	Balance        decimal.Decimal
	OpeningBalance decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reconciliation compares an account's stored balance with the balance implied
// by its opening balance and its non-canceled transactions.
type Reconciliation struct {
	AccountID uuid.UUID
	Name      string
	Stored    decimal.Decimal
	Expected  decimal.Decimal
}

func (r Reconciliation) Drift() decimal.Decimal {
	return r.Stored.Sub(r.Expected)
}

func (r Reconciliation) Balanced() bool {
	return r.Stored.Equal(r.Expected)
}
