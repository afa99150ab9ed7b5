package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/service"
)

type mockAccountService struct {
	created  *service.CreateAccountRequest
	active   *bool
	accounts []domain.Account
	report   []domain.Reconciliation
	err      error
}

func (m *mockAccountService) CreateAccount(_ context.Context, req service.CreateAccountRequest) (*domain.Account, error) {
	m.created = &req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Account{ID: uuid.New(), Name: req.Name, Kind: req.Kind, Balance: req.OpeningBalance, OpeningBalance: req.OpeningBalance, Active: true}, nil
}

func (m *mockAccountService) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			return &m.accounts[i], nil
		}
	}
	return nil, fmt.Errorf("GetAccount: %w", domain.ErrNotFound)
}

func (m *mockAccountService) ListAccounts(_ context.Context, active *bool) ([]domain.Account, error) {
	m.active = active
	return m.accounts, m.err
}

func (m *mockAccountService) DeactivateAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := m.GetAccount(context.Background(), id)
	if err != nil {
		return nil, err
	}
	a.Active = false
	return a, nil
}

func (m *mockAccountService) Reconcile(context.Context) ([]domain.Reconciliation, error) {
	return m.report, m.err
}

func accountRouter(h *AccountHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/accounts", h.List)
	r.Post("/accounts", h.Create)
	r.Get("/accounts/{id}", h.Get)
	r.Delete("/accounts/{id}", h.Deactivate)
	r.Get("/reconciliation", h.Reconcile)
	return r
}

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		err         error
		wantStatus  int
		wantCode    string
		wantBalance string
	}{
		{
			name:        "with opening balance",
			body:        `{"name":"Main bank","kind":"bank","opening_balance":"1500.5"}`,
			wantStatus:  http.StatusCreated,
			wantBalance: "1500.50",
		},
		{
			name:        "opening balance defaults to zero",
			body:        `{"name":"Cash box","kind":"CASH"}`,
			wantStatus:  http.StatusCreated,
			wantBalance: "0.00",
		},
		{
			name:       "missing fields",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "negative opening balance",
			body:       `{"name":"Cash box","kind":"CASH","opening_balance":-1}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown kind",
			body:       `{"name":"Cash box","kind":"CRYPTO"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "duplicate name",
			body:       `{"name":"Cash box","kind":"CASH"}`,
			err:        fmt.Errorf("CreateAccount: %w", domain.ErrAccountExists),
			wantStatus: http.StatusConflict,
			wantCode:   "ACCOUNT_ALREADY_EXISTS",
		},
		{
			name:       "not json",
			body:       `name=x`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAccountService{err: tc.err}
			rec := httptest.NewRecorder()
			accountRouter(NewAccountHandler(svc)).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(tc.body)))

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, env.Error.Code)
				return
			}

			var dto accountDTO
			require.NoError(t, json.Unmarshal(env.Data, &dto))
			assert.Equal(t, tc.wantBalance, dto.Balance)
			assert.Equal(t, tc.wantBalance, dto.OpeningBalance)
			assert.True(t, dto.IsActive)
			assert.Equal(t, "/api/v1/accounts/"+dto.ID.String(), rec.Header().Get("Location"))
		})
	}
}

func TestListAccounts_ActiveFilter(t *testing.T) {
	svc := &mockAccountService{accounts: []domain.Account{{ID: uuid.New(), Name: "Cash box", Balance: decimal.RequireFromString("12.3")}}}
	router := accountRouter(NewAccountHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts?active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.active)
	assert.True(t, *svc.active)

	var dtos []accountDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, "12.30", dtos[0].Balance)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.active)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts?active=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateAccount(t *testing.T) {
	id := uuid.New()
	svc := &mockAccountService{accounts: []domain.Account{{ID: id, Name: "Old bank", Active: true}}}
	router := accountRouter(NewAccountHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/accounts/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto accountDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	assert.False(t, dto.IsActive)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/accounts/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcile(t *testing.T) {
	svc := &mockAccountService{report: []domain.Reconciliation{
		{AccountID: uuid.New(), Name: "Cash box", Stored: decimal.RequireFromString("100"), Expected: decimal.RequireFromString("100")},
		{AccountID: uuid.New(), Name: "Bank", Stored: decimal.RequireFromString("90"), Expected: decimal.RequireFromString("100")},
	}}

	rec := httptest.NewRecorder()
	accountRouter(NewAccountHandler(svc)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reconciliation", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report reconciliationReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &report))
	assert.False(t, report.Balanced)
	require.Len(t, report.Accounts, 2)
	assert.True(t, report.Accounts[0].Balanced)
	assert.Equal(t, "-10.00", report.Accounts[1].Drift)
}
