package household

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidReference is returned when a referenced family or patient
	// does not exist.
	ErrInvalidReference = errors.New("invalid reference")
)

// inputError carries a client-facing message while matching one of the
// sentinels above with errors.Is.
type inputError struct {
	kind error
	msg  string
}

func (e *inputError) Error() string { return e.msg }
func (e *inputError) Unwrap() error { return e.kind }

func invalid(format string, args ...any) error {
	return &inputError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func badReference(field string) error {
	return &inputError{kind: ErrInvalidReference, msg: "Invalid " + field + ": not found"}
}

var errNothingToUpdate = invalid("Nothing to update")
