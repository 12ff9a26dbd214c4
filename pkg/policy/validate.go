package policy

import (
	"fmt"
	"strings"
)

// ValidationError represents one policy validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors, collected during
// load rather than failing at the first one.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "policy validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}
