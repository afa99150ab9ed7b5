// Package seed loads reference data (accounts, expense categories and rent
// obligations) from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/service"
)

// categoryNamespace derives stable category ids from names so reseeding is
// a no-op.
var categoryNamespace = uuid.MustParse("6f1c1f8e-2a3b-4c5d-9e8f-0a1b2c3d4e5f")

type File struct {
	Accounts   []Account  `yaml:"accounts"`
	Categories []Category `yaml:"categories"`
	Rents      []Rent     `yaml:"rents"`
}

type Account struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"`
	OpeningBalance string `yaml:"opening_balance"`
}

type Category struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

type Rent struct {
	OwnerID string `yaml:"owner_id"`
	Month   int    `yaml:"month"`
	Year    int    `yaml:"year"`
	Amount  string `yaml:"amount"`
	DueDate string `yaml:"due_date"`
}

// Parse decodes and validates a seed file.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("seed.Parse: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("seed.Parse: %w", err)
	}
	return &f, nil
}

func (f *File) validate() error {
	for i, a := range f.Accounts {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("accounts[%d]: name is required", i)
		}
		if !domain.AccountKind(strings.ToUpper(a.Kind)).IsValid() {
			return fmt.Errorf("accounts[%d]: kind must be CASH or BANK", i)
		}
		if _, err := parseAmount(a.OpeningBalance); err != nil {
			return fmt.Errorf("accounts[%d]: opening_balance: %w", i, err)
		}
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if !domain.CategoryKind(strings.ToUpper(c.Kind)).IsValid() {
			return fmt.Errorf("categories[%d]: kind must be INCOME or EXPENSE", i)
		}
		if c.ID != "" {
			if _, err := uuid.Parse(c.ID); err != nil {
				return fmt.Errorf("categories[%d]: id: %w", i, err)
			}
		}
	}
	for i, r := range f.Rents {
		if _, err := uuid.Parse(r.OwnerID); err != nil {
			return fmt.Errorf("rents[%d]: owner_id: %w", i, err)
		}
		if r.Month < 1 || r.Month > 12 {
			return fmt.Errorf("rents[%d]: month must be 1-12", i)
		}
		if r.Year < 1 {
			return fmt.Errorf("rents[%d]: year is required", i)
		}
		if _, err := parseAmount(r.Amount); err != nil {
			return fmt.Errorf("rents[%d]: amount: %w", i, err)
		}
		if r.DueDate != "" {
			if _, err := time.Parse("2006-01-02", r.DueDate); err != nil {
				return fmt.Errorf("rents[%d]: due_date: %w", i, err)
			}
		}
	}
	return nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return domain.Quantize(d), nil
}

// CategoryID returns the id a category is stored under.
func (c Category) CategoryID() uuid.UUID {
	if id, err := uuid.Parse(c.ID); err == nil {
		return id
	}
	return uuid.NewSHA1(categoryNamespace, []byte(strings.ToLower(strings.TrimSpace(c.Name))))
}

type accountCreator interface {
	CreateAccount(ctx context.Context, req service.CreateAccountRequest) (*domain.Account, error)
}

type categoryStore interface {
	Create(ctx context.Context, c *domain.Category) error
}

type rentStore interface {
	Create(ctx context.Context, rent *domain.RentObligation) error
}

// Loader writes a parsed seed file. Every step is idempotent: existing
// accounts, categories and rent periods are left untouched.
type Loader struct {
	accounts   accountCreator
	categories categoryStore
	rents      rentStore
}

func NewLoader(accounts accountCreator, categories categoryStore, rents rentStore) *Loader {
	return &Loader{accounts: accounts, categories: categories, rents: rents}
}

type Result struct {
	AccountsCreated int
	AccountsSkipped int
	Categories      int
	Rents           int
}

func (l *Loader) Apply(ctx context.Context, f *File) (Result, error) {
	log := logging.FromContext(ctx)
	var res Result

	for _, a := range f.Accounts {
		opening, _ := parseAmount(a.OpeningBalance)
		_, err := l.accounts.CreateAccount(ctx, service.CreateAccountRequest{
			Name:           a.Name,
			Kind:           domain.AccountKind(strings.ToUpper(a.Kind)),
			OpeningBalance: opening,
		})
		switch {
		case errors.Is(err, domain.ErrAccountExists):
			log.Info("account already exists, skipping", "name", a.Name)
			res.AccountsSkipped++
		case err != nil:
			return res, fmt.Errorf("seed.Apply: account %q: %w", a.Name, err)
		default:
			res.AccountsCreated++
		}
	}

	now := time.Now().UTC()
	for _, c := range f.Categories {
		cat := &domain.Category{
			ID:        c.CategoryID(),
			Name:      strings.TrimSpace(c.Name),
			Kind:      domain.CategoryKind(strings.ToUpper(c.Kind)),
			Active:    true,
			CreatedAt: now,
		}
		if err := l.categories.Create(ctx, cat); err != nil {
			return res, fmt.Errorf("seed.Apply: category %q: %w", c.Name, err)
		}
		res.Categories++
	}

	for _, r := range f.Rents {
		amount, _ := parseAmount(r.Amount)
		rent := &domain.RentObligation{
			ID:        uuid.New(),
			OwnerID:   uuid.MustParse(r.OwnerID),
			Month:     r.Month,
			Year:      r.Year,
			Amount:    amount,
			Status:    domain.RentStatusUnpaid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if r.DueDate != "" {
			due, _ := time.Parse("2006-01-02", r.DueDate)
			rent.DueDate = &due
		}
		if err := l.rents.Create(ctx, rent); err != nil {
			return res, fmt.Errorf("seed.Apply: rent %s for %s: %w", rent.Period(), r.OwnerID, err)
		}
		res.Rents++
	}

	log.Info("seed applied",
		"accounts_created", res.AccountsCreated,
		"accounts_skipped", res.AccountsSkipped,
		"categories", res.Categories,
		"rents", res.Rents,
	)
	return res, nil
}
