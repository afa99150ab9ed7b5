package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment settles a rent obligation into an account.
type Payment struct {
	ID                 uuid.UUID
	RentObligationID   uuid.UUID
	OwnerID            uuid.UUID
	AccountID          uuid.UUID
	Amount             decimal.Decimal
	LateFeeAmount      decimal.Decimal
	PaymentDate        time.Time
	ReferenceNo        *string
	Canceled           bool
	CanceledAt         *time.Time
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p *Payment) Total() decimal.Decimal {
	return p.Amount.Add(p.LateFeeAmount)
}

type PaymentFilter struct {
	RentObligationID *uuid.UUID
	AccountID        *uuid.UUID
	Canceled         *bool
}
