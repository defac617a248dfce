package mutate

import (
	"errors"
	"fmt"
)

var (
	ErrNotEditable   = errors.New("field is not editable")
	ErrInvalidStatus = errors.New("invalid status")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

type InvalidValueError struct {
	Field Field
	Value string
	Err   error
}

func (e InvalidValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e InvalidValueError) Unwrap() error {
	return e.Err
}
