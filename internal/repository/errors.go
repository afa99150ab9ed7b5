package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/building-ledger/internal/domain"
)

const (
	codeUniqueViolation      = "23505"
	codeNumericOutOfRange    = "22003"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// MapError classifies a driver error as a retryable conflict, an amount that
// overflows its column, or a generic storage failure. Domain errors pass
// through untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		case codeNumericOutOfRange:
			return fmt.Errorf("%w: %w", domain.ErrInvalidAmount, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrStorage,
		domain.ErrAlreadyCanceled,
		domain.ErrAccountExists,
		domain.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
