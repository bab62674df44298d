package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlertNotFound is returned for lifecycle transitions on an alert id
	// that does not exist. Callers treat it as a logged no-op.
	ErrAlertNotFound = errors.New("alert not found")
)

// ValidationError reports a malformed or missing numeric attribute found
// during feature extraction. The offending event is dropped; nothing is
// persisted for it.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for attribute %q", e.Value, e.Field)
}

// UnknownCategoryError reports a raw event whose type discriminant maps to
// no known category.
type UnknownCategoryError struct {
	Type string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown data type %q", e.Type)
}
