package action

import (
	"errors"
	"fmt"
)

// ErrValidation matches every input rejected before a request is sent.
var ErrValidation = errors.New("invalid input")

type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateNameError rejects an upload or download whose file name is already
// in the local file collection.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("a file named %q already exists", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrValidation
}
