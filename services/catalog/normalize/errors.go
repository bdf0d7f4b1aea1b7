package normalize

import (
	"errors"
	"fmt"
)

var ErrInvalid = errors.New("invalid record")

// ValidationError rejects one record, siblings are unaffected.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, value, reason string) error {
	return ValidationError{Field: field, Value: value, Reason: reason}
}
