package llm

import (
	"errors"
	"fmt"
)

// ErrTransient marks failures that are worth retrying once: rate limits,
// upstream 5xx responses, connection resets. Everything else is fatal for the
// current call.
var ErrTransient = errors.New("transient llm failure")

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// IsTransient reports whether the error is a retryable provider failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
