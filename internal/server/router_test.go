package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/building-ledger/internal/auth"
	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/handler"
	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/service"
)

const testSecret = "router-secret"

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*repository.IdempotencyCacheEntry
}

func (c *memoryCache) Reserve(_ context.Context, key string, actorID uuid.UUID, hash string, leaseUntil time.Time) (*repository.IdempotencyCacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key + "/" + actorID.String()
	if e, ok := c.entries[k]; ok {
		return e, false, nil
	}
	c.entries[k] = &repository.IdempotencyCacheEntry{Key: key, ActorID: actorID, RequestHash: hash, Pending: true, ExpiresAt: leaseUntil}
	return nil, true, nil
}

func (c *memoryCache) Complete(_ context.Context, e *repository.IdempotencyCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Key+"/"+e.ActorID.String()] = e
	return nil
}

func (c *memoryCache) Release(_ context.Context, key string, actorID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key+"/"+actorID.String())
	return nil
}

type countingAccounts struct {
	creates int
}

func (a *countingAccounts) CreateAccount(_ context.Context, req service.CreateAccountRequest) (*domain.Account, error) {
	a.creates++
	return &domain.Account{ID: uuid.New(), Name: req.Name, Kind: req.Kind, Active: true}, nil
}

func (a *countingAccounts) GetAccount(context.Context, uuid.UUID) (*domain.Account, error) {
	return nil, domain.ErrNotFound
}

func (a *countingAccounts) ListAccounts(context.Context, *bool) ([]domain.Account, error) {
	return []domain.Account{}, nil
}

func (a *countingAccounts) DeactivateAccount(context.Context, uuid.UUID) (*domain.Account, error) {
	return nil, domain.ErrNotFound
}

func (a *countingAccounts) Reconcile(context.Context) ([]domain.Reconciliation, error) {
	return nil, nil
}

func newTestRouter(accounts *countingAccounts) http.Handler {
	return NewRouter(Handlers{
		Health:       handler.NewHealthHandler(okPinger{}, "test"),
		Accounts:     handler.NewAccountHandler(accounts),
		Transactions: handler.NewTransactionHandler(nil, nil),
		Expenses:     handler.NewExpenseHandler(nil),
		Payments:     handler.NewPaymentHandler(nil),
	}, RouterConfig{
		JWTSecret:      testSecret,
		Idempotency:    &memoryCache{entries: make(map[string]*repository.IdempotencyCacheEntry)},
		IdempotencyTTL: time.Hour,
	})
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(uuid.New(), "", testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_HealthIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&countingAccounts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_APIRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&countingAccounts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_MutationsRequireIdempotencyKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"name":"Cash box","kind":"CASH"}`))
	req.Header.Set("Authorization", bearer(t))

	rec := httptest.NewRecorder()
	newTestRouter(&countingAccounts{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_IDEMPOTENCY_KEY")
}

func TestRouter_ReplaysRetriedCreate(t *testing.T) {
	accounts := &countingAccounts{}
	router := newTestRouter(accounts)
	token := bearer(t)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"name":"Cash box","kind":"CASH"}`))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "create-cash-box")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := send()
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, 1, accounts.creates)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestRouter_UnknownRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/owners", nil)
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	newTestRouter(&countingAccounts{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
