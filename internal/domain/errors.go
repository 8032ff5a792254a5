package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap them with context and match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyVoided     = errors.New("sale already voided")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrStorageFailure    = errors.New("storage failure")
	ErrValidation        = errors.New("validation failed")
	ErrTotalsMismatch    = fmt.Errorf("%w: totals mismatch", ErrValidation)
	ErrReferenced        = errors.New("record is referenced")
)

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrAlreadyVoided):
		return "ALREADY_VOIDED"
	case errors.Is(err, ErrDuplicateKey):
		return "DUPLICATE_KEY"
	case errors.Is(err, ErrTotalsMismatch):
		return "TOTALS_MISMATCH"
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrReferenced):
		return "REFERENCED"
	case errors.Is(err, ErrStorageFailure):
		return "STORAGE_FAILURE"
	}
	return "INTERNAL"
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
