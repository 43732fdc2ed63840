package common

import (
	"fmt"
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

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand used by the upload checks.
func NewValidationError(field string, value interface{}, message string) ValidationError {
	return ValidationError{Field: field, Value: value, Message: message}
}
