package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or out-of-range input. Nothing was mutated.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks a resource owned by a different user.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
	// ErrTransient marks a write that lost a race twice in a row.
	ErrTransient = errors.New("transient failure, retry later")
	// ErrIntegrity marks a stored aggregate that disagrees with its entries.
	ErrIntegrity = errors.New("data integrity violation")
)

// Validation wraps ErrValidation with a user-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Message returns the user-facing part of a validation error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
