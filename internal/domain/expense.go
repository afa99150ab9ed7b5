package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Expense struct {
	ID                     uuid.UUID
	Name                   string
	CategoryID             uuid.UUID
	AccountID              uuid.UUID
	Amount                 decimal.Decimal
	Payee                  *string
	ReceiptNo              *string
	MaintenanceAgreementID *uuid.UUID
	ExpenseDate            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type ExpenseFilter struct {
	AccountID  *uuid.UUID
	CategoryID *uuid.UUID
}
