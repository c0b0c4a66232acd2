package common

import (
	"errors"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	bare := NewAppError("NOT_FOUND", "receipt missing", nil)
	if got := bare.Error(); got != "NOT_FOUND: receipt missing" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := NewAppError("DB_ERROR", "load receipt", ErrDatabase)
	if got := wrapped.Error(); got != "DB_ERROR: load receipt: database error" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError("INVALID_RECEIPT", "amount must be positive", ErrValidation)
	if !errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = false")
	}

	var appErr *AppError
	if !errors.As(error(err), &appErr) || appErr.Code != "INVALID_RECEIPT" {
		t.Errorf("errors.As gave %+v", appErr)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) != nil")
	}
	err := WrapError(ErrNotFound, "load receipt")
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error lost its cause")
	}
	if got := err.Error(); got != "load receipt: resource not found" {
		t.Errorf("Error() = %q", got)
	}
}
