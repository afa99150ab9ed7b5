package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/josh-kwaku/building-ledger/internal/handler"
	"github.com/josh-kwaku/building-ledger/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Health       *handler.HealthHandler
	Accounts     *handler.AccountHandler
	Transactions *handler.TransactionHandler
	Expenses     *handler.ExpenseHandler
	Payments     *handler.PaymentHandler
}

type RouterConfig struct {
	JWTSecret      string
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
}

// NewRouter mounts the health probes at the root and the ledger API under
// /api/v1 behind bearer auth and the idempotency cache.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Recovery)

	r.Get("/health", h.Health.Liveness)
	r.Get("/health/ready", h.Health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.Logging)
		r.Use(middleware.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.Accounts.List)
			r.Post("/", h.Accounts.Create)
			r.Get("/{id}", h.Accounts.Get)
			r.Delete("/{id}", h.Accounts.Deactivate)
		})
		r.Get("/reconciliation", h.Accounts.Reconcile)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.Transactions.List)
			r.Post("/income", h.Transactions.RecordIncome)
			r.Post("/expense", h.Transactions.RecordExpense)
			r.Post("/transfer", h.Transactions.RecordTransfer)
			r.Get("/{id}", h.Transactions.Get)
			r.Post("/{id}/cancel", h.Transactions.Cancel)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.Expenses.List)
			r.Post("/", h.Expenses.Create)
			r.Get("/{id}", h.Expenses.Get)
			r.Put("/{id}", h.Expenses.Update)
			r.Delete("/{id}", h.Expenses.Delete)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.Payments.List)
			r.Post("/", h.Payments.Create)
			r.Get("/{id}", h.Payments.Get)
			r.Post("/{id}/cancel", h.Payments.Cancel)
		})
	})

	return r
}
