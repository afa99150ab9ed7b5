package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pq.Error{Code: codeSerializationFailure}, domain.ErrConflict},
		{"deadlock", &pq.Error{Code: codeDeadlockDetected}, domain.ErrConflict},
		{"lock timeout", &pq.Error{Code: codeLockNotAvailable}, domain.ErrConflict},
		{"statement canceled", &pq.Error{Code: codeQueryCanceled}, domain.ErrConflict},
		{"wrapped lock timeout", fmt.Errorf("GetForUpdate: %w", &pq.Error{Code: codeLockNotAvailable}), domain.ErrConflict},
		{"balance overflows column", &pq.Error{Code: codeNumericOutOfRange}, domain.ErrInvalidAmount},
		{"check violation", &pq.Error{Code: "23514"}, domain.ErrStorage},
		{"plain error", errors.New("connection reset"), domain.ErrStorage},
		{"domain error passes through", fmt.Errorf("Get: %w", domain.ErrNotFound), domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.NoError(t, MapError(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("Create: %w", &pq.Error{Code: codeUniqueViolation})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: codeLockNotAvailable}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
