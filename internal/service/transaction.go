package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type transactionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error)
}

// TransactionService is the read side of the transaction log. Writes go
// through the ledger engine.
type TransactionService struct {
	txns transactionReader
}

func NewTransactionService(txns transactionReader) *TransactionService {
	return &TransactionService{txns: txns}
}

func (s *TransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns one page, newest first, plus the total number of
// rows matching the filter.
func (s *TransactionService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, 0, fmt.Errorf("ListTransactions: unknown type %q: %w", *filter.Type, domain.ErrInvalidRequest)
	}
	if filter.Source != nil && !filter.Source.IsValid() {
		return nil, 0, fmt.Errorf("ListTransactions: unknown source %q: %w", *filter.Source, domain.ErrInvalidRequest)
	}
	if filter.Offset < 0 {
		return nil, 0, fmt.Errorf("ListTransactions: negative offset: %w", domain.ErrInvalidRequest)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultTransactionLimit
	case filter.Limit > maxTransactionLimit:
		filter.Limit = maxTransactionLimit
	}

	txns, total, err := s.txns.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, total, nil
}
