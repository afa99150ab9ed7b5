package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/building-ledger/internal/auth"
	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/service/ledger"
)

type mockEngine struct {
	entry    *ledger.EntryRequest
	transfer *ledger.TransferRequest
	canceled uuid.UUID
	err      error
}

func (m *mockEngine) RecordIncome(_ context.Context, req ledger.EntryRequest) (*domain.Transaction, *domain.Account, error) {
	return m.record(req, domain.TransactionTypeIncome, decimal.NewFromInt(100).Add(req.Amount))
}

func (m *mockEngine) RecordExpense(_ context.Context, req ledger.EntryRequest) (*domain.Transaction, *domain.Account, error) {
	return m.record(req, domain.TransactionTypeExpense, decimal.NewFromInt(100).Sub(req.Amount))
}

func (m *mockEngine) record(req ledger.EntryRequest, typ domain.TransactionType, balance decimal.Decimal) (*domain.Transaction, *domain.Account, error) {
	m.entry = &req
	if m.err != nil {
		return nil, nil, m.err
	}
	txn := &domain.Transaction{ID: uuid.New(), AccountID: req.AccountID, Type: typ, Source: req.Source, Amount: req.Amount, CreatedBy: req.CreatedBy}
	return txn, &domain.Account{ID: req.AccountID, Name: "Cash box", Kind: domain.AccountKindCash, Balance: balance, Active: true}, nil
}

func (m *mockEngine) RecordTransfer(_ context.Context, req ledger.TransferRequest) (*domain.Transaction, *domain.Account, *domain.Account, error) {
	m.transfer = &req
	if m.err != nil {
		return nil, nil, nil, m.err
	}
	to := req.ToAccountID
	txn := &domain.Transaction{ID: uuid.New(), AccountID: req.FromAccountID, RelatedAccountID: &to, Type: domain.TransactionTypeTransfer, Source: domain.SourceTransfer, Amount: req.Amount}
	return txn, &domain.Account{ID: req.FromAccountID}, &domain.Account{ID: req.ToAccountID}, nil
}

func (m *mockEngine) Cancel(_ context.Context, id uuid.UUID) (*domain.Transaction, []*domain.Account, error) {
	m.canceled = id
	if m.err != nil {
		return nil, nil, m.err
	}
	now := time.Now()
	return &domain.Transaction{ID: id, Type: domain.TransactionTypeIncome, Canceled: true, CanceledAt: &now}, []*domain.Account{{ID: uuid.New()}}, nil
}

type mockTransactionReader struct {
	filter domain.TransactionFilter
	txns   []domain.Transaction
	err    error
}

func (m *mockTransactionReader) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	for i := range m.txns {
		if m.txns[i].ID == id {
			return &m.txns[i], nil
		}
	}
	return nil, fmt.Errorf("GetTransaction: %w", domain.ErrNotFound)
}

func (m *mockTransactionReader) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	m.filter = filter
	return m.txns, len(m.txns), m.err
}

func transactionRouter(h *TransactionHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/transactions", h.List)
	r.Get("/transactions/{id}", h.Get)
	r.Post("/transactions/income", h.RecordIncome)
	r.Post("/transactions/expense", h.RecordExpense)
	r.Post("/transactions/transfer", h.RecordTransfer)
	r.Post("/transactions/{id}/cancel", h.Cancel)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string       `json:"code"`
		Details []FieldError `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRecordIncome(t *testing.T) {
	acct := uuid.New()
	actor := uuid.New()

	tests := []struct {
		name       string
		body       string
		engineErr  error
		wantStatus int
		wantCode   string
		wantAmount string
	}{
		{
			name:       "numeric amount",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":250.5,"description":"Parking"}`, acct),
			wantStatus: http.StatusCreated,
			wantAmount: "250.50",
		},
		{
			name:       "string amount is quantized",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"10.005"}`, acct),
			wantStatus: http.StatusCreated,
			wantAmount: "10.01",
		},
		{
			name:       "amount below a cent",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"0.004"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "missing amount",
			body:       fmt.Sprintf(`{"account_id":%q}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown source",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1","source":"GIFT"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "rent source is reserved for payments",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1","source":"rent"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "expense source is reserved for expenses",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1","source":"EXPENSE"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "related entity on manual entry",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1","related_entity_id":%q}`, acct, uuid.New()),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "huge exponent is rejected without rounding",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1e200000000"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "amount above column range",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1000000000000.00"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed amount",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"ten"}`, acct),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "inactive account",
			body:       fmt.Sprintf(`{"account_id":%q,"amount":"1"}`, acct),
			engineErr:  fmt.Errorf("RecordIncome: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &mockEngine{err: tc.engineErr}
			router := transactionRouter(NewTransactionHandler(engine, &mockTransactionReader{}))

			req := httptest.NewRequest(http.MethodPost, "/transactions/income", strings.NewReader(tc.body))
			req = req.WithContext(auth.ContextWithActorID(req.Context(), actor))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			if tc.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tc.wantCode, env.Error.Code)
				return
			}

			var res postingResult
			require.NoError(t, json.Unmarshal(env.Data, &res))
			assert.Equal(t, tc.wantAmount, res.Transaction.Amount)
			assert.Equal(t, "MANUAL", res.Transaction.Source)
			require.NotNil(t, res.Transaction.CreatedBy)
			assert.Equal(t, actor, *res.Transaction.CreatedBy)
			require.Len(t, res.Accounts, 1)
		})
	}
}

func TestRecordExpense_MapsDomainErrors(t *testing.T) {
	acct := uuid.New()
	body := fmt.Sprintf(`{"account_id":%q,"amount":"40"}`, acct)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryable  bool
	}{
		{name: "overdraft", err: domain.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity, wantCode: "INSUFFICIENT_FUNDS"},
		{name: "lock timeout", err: domain.ErrConflict, wantStatus: http.StatusConflict, wantCode: "CONFLICT", retryable: true},
		{name: "storage failure", err: domain.ErrStorage, wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &mockEngine{err: fmt.Errorf("RecordExpense: %w", tc.err)}
			router := transactionRouter(NewTransactionHandler(engine, &mockTransactionReader{}))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/expense", strings.NewReader(body)))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeEnvelope(t, rec).Error.Code)
			if tc.retryable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRecordTransfer(t *testing.T) {
	from, to := uuid.New(), uuid.New()

	t.Run("returns both accounts", func(t *testing.T) {
		engine := &mockEngine{}
		router := transactionRouter(NewTransactionHandler(engine, &mockTransactionReader{}))

		body := fmt.Sprintf(`{"from_account_id":%q,"to_account_id":%q,"amount":"75"}`, from, to)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/transfer", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var res postingResult
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &res))
		assert.Equal(t, "TRANSFER", res.Transaction.Type)
		assert.Equal(t, "75.00", res.Transaction.Amount)
		require.Len(t, res.Accounts, 2)
		assert.Equal(t, from, res.Accounts[0].ID)
		assert.Equal(t, to, res.Accounts[1].ID)
	})

	t.Run("self transfer", func(t *testing.T) {
		engine := &mockEngine{err: fmt.Errorf("RecordTransfer: %w", domain.ErrSelfTransfer)}
		router := transactionRouter(NewTransactionHandler(engine, &mockTransactionReader{}))

		body := fmt.Sprintf(`{"from_account_id":%q,"to_account_id":%q,"amount":"75"}`, from, from)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/transfer", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "SELF_TRANSFER_NOT_ALLOWED", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("missing accounts", func(t *testing.T) {
		router := transactionRouter(NewTransactionHandler(&mockEngine{}, &mockTransactionReader{}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/transfer", strings.NewReader(`{"amount":"1"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		assert.Len(t, env.Error.Details, 2)
	})
}

func TestCancelTransaction(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "canceled", path: "/transactions/" + id.String() + "/cancel", wantStatus: http.StatusOK},
		{name: "already canceled", path: "/transactions/" + id.String() + "/cancel", err: domain.ErrAlreadyCanceled, wantStatus: http.StatusConflict, wantCode: "ALREADY_CANCELED"},
		{name: "subledger owned", path: "/transactions/" + id.String() + "/cancel", err: domain.ErrInvalidRequest, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "reversal overdraws", path: "/transactions/" + id.String() + "/cancel", err: domain.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity, wantCode: "INSUFFICIENT_FUNDS"},
		{name: "bad id", path: "/transactions/not-a-uuid/cancel", wantStatus: http.StatusNotFound, wantCode: "RESOURCE_NOT_FOUND"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &mockEngine{}
			if tc.err != nil {
				engine.err = fmt.Errorf("Cancel: %w", tc.err)
			}
			router := transactionRouter(NewTransactionHandler(engine, &mockTransactionReader{}))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, nil))

			require.Equal(t, tc.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, env.Error.Code)
				return
			}
			assert.Equal(t, id, engine.canceled)
			var res postingResult
			require.NoError(t, json.Unmarshal(env.Data, &res))
			assert.True(t, res.Transaction.IsCanceled)
		})
	}
}

func TestListTransactions(t *testing.T) {
	acct := uuid.New()
	reader := &mockTransactionReader{txns: []domain.Transaction{
		{ID: uuid.New(), AccountID: acct, Type: domain.TransactionTypeIncome, Source: domain.SourceRent, Amount: decimal.RequireFromString("200")},
	}}
	router := transactionRouter(NewTransactionHandler(&mockEngine{}, reader))

	t.Run("parses filters", func(t *testing.T) {
		path := fmt.Sprintf("/transactions?account_id=%s&type=income&source=rent&canceled=false&limit=10&offset=5", acct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, reader.filter.AccountID)
		assert.Equal(t, acct, *reader.filter.AccountID)
		assert.Equal(t, domain.TransactionTypeIncome, *reader.filter.Type)
		assert.Equal(t, domain.SourceRent, *reader.filter.Source)
		assert.False(t, *reader.filter.Canceled)
		assert.Equal(t, 10, reader.filter.Limit)
		assert.Equal(t, 5, reader.filter.Offset)

		var page transactionPage
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
		assert.Equal(t, 1, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "200.00", page.Items[0].Amount)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?account_id=x&type=refund&limit=-1", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		assert.Len(t, env.Error.Details, 3)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
