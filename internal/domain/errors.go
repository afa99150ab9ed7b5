package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to same account")
	ErrAlreadyCanceled   = errors.New("already canceled")
	ErrRentAlreadyPaid   = errors.New("rent obligation already paid")
	ErrAccountExists     = errors.New("active account with this name already exists")

	// ErrConflict is returned when the store gave up waiting on a row lock or
	// aborted the unit of work; the caller may retry.
	ErrConflict = errors.New("concurrent update conflict")
	ErrStorage  = errors.New("storage error")
)
