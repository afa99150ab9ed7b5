package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/service"
	"github.com/josh-kwaku/building-ledger/internal/service/ledger"
	"github.com/josh-kwaku/building-ledger/internal/testutil"
)

func TestAccountLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewAccountService(repository.NewAccountRepository(db))
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, service.CreateAccountRequest{
		Name:           "Main bank",
		Kind:           domain.AccountKindBank,
		OpeningBalance: decimal.RequireFromString("250.005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "250.01", domain.FormatMoney(acct.Balance))
	assert.True(t, acct.Active)

	_, err = svc.CreateAccount(ctx, service.CreateAccountRequest{Name: "Main bank", Kind: domain.AccountKindCash})
	require.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = svc.DeactivateAccount(ctx, acct.ID)
	require.NoError(t, err)

	active := true
	list, err := svc.ListAccounts(ctx, &active)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, err := svc.ListAccounts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	_, err = svc.CreateAccount(ctx, service.CreateAccountRequest{Name: "Main bank", Kind: domain.AccountKindBank})
	require.NoError(t, err, "name is free again once the old account is deactivated")
}

func TestCreateAccountValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewAccountService(repository.NewAccountRepository(db))
	ctx := context.Background()

	tests := []struct {
		name    string
		req     service.CreateAccountRequest
		wantErr error
	}{
		{"empty name", service.CreateAccountRequest{Kind: domain.AccountKindCash}, domain.ErrInvalidRequest},
		{"unknown kind", service.CreateAccountRequest{Name: "x", Kind: "CRYPTO"}, domain.ErrInvalidRequest},
		{"negative opening", service.CreateAccountRequest{Name: "x", Kind: domain.AccountKindCash, OpeningBalance: decimal.RequireFromString("-1")}, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewAccountService(repository.NewAccountRepository(db))
	engine := ledger.NewEngine(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		testutil.NewTestDB(db),
		false,
	)
	ctx := context.Background()

	cash := testutil.SeedAccount(t, db, "Cash", domain.AccountKindCash, "100.00")
	bank := testutil.SeedAccount(t, db, "Bank", domain.AccountKindBank, "0.00")

	_, _, _, err := engine.RecordTransfer(ctx, ledger.TransferRequest{
		FromAccountID: cash.ID,
		ToAccountID:   bank.ID,
		Amount:        decimal.RequireFromString("40"),
	})
	require.NoError(t, err)

	report, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)
	for _, r := range report {
		assert.True(t, r.Balanced())
	}

	_, err = db.Exec(`UPDATE accounts SET balance = balance + 1 WHERE id = $1`, bank.ID)
	require.NoError(t, err)

	report, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	for _, r := range report {
		if r.AccountID == bank.ID {
			assert.Equal(t, "1.00", domain.FormatMoney(r.Drift()))
		} else {
			assert.True(t, r.Balanced())
		}
	}
}
