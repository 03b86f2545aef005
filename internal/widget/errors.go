package widget

import (
	"errors"
	"fmt"
)

// ErrUnknownModule is returned when no module is registered for a widget type
var ErrUnknownModule = errors.New("unknown module type")

// ValidationError represents a validation error for a specific field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
