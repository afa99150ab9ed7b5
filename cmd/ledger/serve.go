package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/building-ledger/internal/handler"
	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/server"
	"github.com/josh-kwaku/building-ledger/internal/service"
	"github.com/josh-kwaku/building-ledger/internal/service/expense"
	"github.com/josh-kwaku/building-ledger/internal/service/ledger"
	"github.com/josh-kwaku/building-ledger/internal/service/payment"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(parent context.Context, opts *rootOptions, migrate bool) error {
	cfg := opts.cfg

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := opts.openDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrate {
		if _, err := repository.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	db := repository.NewDB(pool, cfg.LockTimeout())
	accountRepo := repository.NewAccountRepository(pool)
	txnRepo := repository.NewTransactionRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	engine := ledger.NewEngine(accountRepo, txnRepo, db, cfg.AllowNegativeBalance)
	expenses := expense.NewService(
		repository.NewExpenseRepository(pool),
		repository.NewCategoryRepository(pool),
		txnRepo,
		engine,
		db,
	)
	payments := payment.NewService(
		repository.NewPaymentRepository(pool),
		repository.NewRentRepository(pool),
		engine,
		db,
	)

	router := server.NewRouter(server.Handlers{
		Health:       handler.NewHealthHandler(pool, version),
		Accounts:     handler.NewAccountHandler(service.NewAccountService(accountRepo)),
		Transactions: handler.NewTransactionHandler(engine, service.NewTransactionService(txnRepo)),
		Expenses:     handler.NewExpenseHandler(expenses),
		Payments:     handler.NewPaymentHandler(payments),
	}, server.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		Idempotency:    idempotencyRepo,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	var wg sync.WaitGroup
	sweeper := service.NewIdempotencySweeper(idempotencyRepo, slog.Default(), cfg.IdempotencySweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", addr, "allow_negative_balance", engine.AllowNegative())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: forced shutdown: %w", err)
	}
	stop()
	wg.Wait()
	slog.Info("server stopped")
	return nil
}
