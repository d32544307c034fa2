package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorfOrNil wraps e with formatted context, passing nil through
// untouched. Handy after loops that may or may not have failed.
func ErrorfOrNil(e error, format string, args ...any) error {
	if e == nil {
		return nil
	}
	if len(format) == 0 {
		return e
	}
	return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", e)
}

// Join mirrors errors.Join so callers need a single errors import.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
