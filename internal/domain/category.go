package domain

import (
	"time"

	"github.com/google/uuid"
)

type CategoryKind string

const (
	CategoryKindIncome  CategoryKind = "INCOME"
	CategoryKindExpense CategoryKind = "EXPENSE"
)

func (k CategoryKind) IsValid() bool {
	return k == CategoryKindIncome || k == CategoryKindExpense
}

type Category struct {
	ID        uuid.UUID
	Name      string
	Kind      CategoryKind
	Active    bool
	CreatedAt time.Time
}
