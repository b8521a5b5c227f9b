package service

import (
	"fmt"

	"github.com/SanjayB2005/TaskManagement/pkg/storage"
	"github.com/pkg/errors"
)

var (
	ErrNotFound         = storage.ErrNotFound
	ErrStoreUnavailable = storage.ErrUnavailable
)

// ValidationError is a user-correctable problem with a request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
