package common

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/receiptscan/receiptscan/constants"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// CheckFilename rejects empty names and extensions outside the accepted set.
func CheckFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return NewAppError("INVALID_FILENAME", "filename is empty", ErrInvalidInput)
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if ext == "" {
		return NewAppError("INVALID_FILENAME",
			fmt.Sprintf("filename %q has no extension", filename), ErrUnsupportedFormat)
	}
	return nil
}

// CheckSize enforces the upload ceiling. This runs before any processing,
// so a rejected document never reaches the pipeline.
func CheckSize(n int) error {
	if n == 0 {
		return NewAppError("EMPTY_FILE", "document is empty", ErrInvalidInput)
	}
	if n > constants.MaxUploadBytes {
		return NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("document is %d bytes, limit is %d", n, constants.MaxUploadBytes),
			ErrInvalidInput)
	}
	return nil
}

// CheckCurrencyCode validates a 3-letter ISO 4217 code from the supported set.
func CheckCurrencyCode(code string) error {
	if len(code) != 3 {
		return ValidationError{Field: "currency_code", Value: code, Message: "must be exactly 3 characters (ISO 4217)"}
	}
	if !constants.IsSupportedCurrency(code) {
		return ValidationError{Field: "currency_code", Value: code, Message: "is not a supported currency"}
	}
	return nil
}
