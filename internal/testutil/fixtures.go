package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

func SeedAccount(t *testing.T, db *sql.DB, name string, kind domain.AccountKind, balance string) *domain.Account {
	t.Helper()

	now := time.Now().UTC()
	a := &domain.Account{
		ID:             uuid.New(),
		Name:           name,
		Kind:           kind,
		Balance:        decimal.RequireFromString(balance),
		OpeningBalance: decimal.RequireFromString(balance),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, name, kind, balance, opening_balance, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.Kind, a.Balance, a.OpeningBalance, a.Active, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", name, err)
	}
	return a
}

func DeactivateAccount(t *testing.T, db *sql.DB, id uuid.UUID) {
	t.Helper()

	if _, err := db.Exec(`UPDATE accounts SET is_active = FALSE WHERE id = $1`, id); err != nil {
		t.Fatalf("deactivate account %s: %v", id, err)
	}
}

func SeedCategory(t *testing.T, db *sql.DB, name string, kind domain.CategoryKind) *domain.Category {
	t.Helper()

	c := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Kind:      kind,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO categories (id, name, kind, is_active, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Kind, c.Active, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return c
}

func SeedRent(t *testing.T, db *sql.DB, month, year int, amount string) *domain.RentObligation {
	t.Helper()

	now := time.Now().UTC()
	r := &domain.RentObligation{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Month:     month,
		Year:      year,
		Amount:    decimal.RequireFromString(amount),
		Status:    domain.RentStatusUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(
		`INSERT INTO rent_obligations (id, owner_id, month, year, amount, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.OwnerID, r.Month, r.Year, r.Amount, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed rent obligation %d/%d: %v", month, year, err)
	}
	return r
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetRentStatus(t *testing.T, db *sql.DB, rentID uuid.UUID) domain.RentStatus {
	t.Helper()

	var status domain.RentStatus
	err := db.QueryRow(`SELECT status FROM rent_obligations WHERE id = $1`, rentID).Scan(&status)
	if err != nil {
		t.Fatalf("get rent status %s: %v", rentID, err)
	}
	return status
}

// CountTransactions counts the transactions touching accountID, on either
// side, that match the canceled flag.
func CountTransactions(t *testing.T, db *sql.DB, accountID uuid.UUID, canceled bool) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions
		 WHERE (account_id = $1 OR related_account_id = $1) AND is_canceled = $2`,
		accountID, canceled,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for account %s: %v", accountID, err)
	}
	return count
}

func RequireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()

	if !decimal.RequireFromString(want).Equal(got) {
		t.Fatalf("want %s, got %s", want, got.StringFixed(2))
	}
}
