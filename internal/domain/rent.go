package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RentStatus string

const (
	RentStatusUnpaid RentStatus = "UNPAID"
	RentStatusPaid   RentStatus = "PAID"
)

// RentObligation is owned by the rent schedule; the ledger only reads it and
// flips its status when a payment is recorded or canceled.
type RentObligation struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Month     int
	Year      int
	Amount    decimal.Decimal
	DueDate   *time.Time
	Status    RentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *RentObligation) Period() string {
	return fmt.Sprintf("%d/%d", r.Month, r.Year)
}
