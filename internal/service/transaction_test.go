package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/service"
)

type capturingReader struct {
	got domain.TransactionFilter
}

func (c *capturingReader) GetByID(context.Context, uuid.UUID) (*domain.Transaction, error) {
	return nil, domain.ErrNotFound
}

func (c *capturingReader) List(_ context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	c.got = f
	return []domain.Transaction{}, 0, nil
}

func TestListTransactions_Paging(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "default", limit: 0, wantLimit: 50},
		{name: "explicit", limit: 10, wantLimit: 10},
		{name: "clamped", limit: 1000, wantLimit: 200},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reader := &capturingReader{}
			_, _, err := service.NewTransactionService(reader).ListTransactions(context.Background(), domain.TransactionFilter{Limit: tc.limit})
			require.NoError(t, err)
			assert.Equal(t, tc.wantLimit, reader.got.Limit)
		})
	}
}

func TestListTransactions_RejectsBadFilters(t *testing.T) {
	bogusType := domain.TransactionType("REFUND")
	bogusSource := domain.TransactionSource("GIFT")

	tests := []struct {
		name   string
		filter domain.TransactionFilter
	}{
		{name: "type", filter: domain.TransactionFilter{Type: &bogusType}},
		{name: "source", filter: domain.TransactionFilter{Source: &bogusSource}},
		{name: "offset", filter: domain.TransactionFilter{Offset: -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := service.NewTransactionService(&capturingReader{}).ListTransactions(context.Background(), tc.filter)
			require.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	_, err := service.NewTransactionService(&capturingReader{}).GetTransaction(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
