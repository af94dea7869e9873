package errors

import (
	"fmt"

	pkgErrors "github.com/pkg/errors"
)

// New returns an error with the given message.
func New(format string, args ...interface{}) error {
	return pkgErrors.Errorf(format, args...)
}

// WithContext annotates `err` with `context`, which should describe what the
// code was doing when the error occurred, e.g. "read file".
// It returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return pkgErrors.WithMessage(err, context)
}

// RootCause returns the innermost error in a chain created by WithContext.
func RootCause(err error) error {
	return pkgErrors.Cause(err)
}

// FriendlyError is an error whose message is meant to be shown to the user
// directly, without any of the context that was added along the way.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a new FriendlyError.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}
