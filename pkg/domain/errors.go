package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField is returned when a record is built without a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrIndexOutOfRange is returned by the positional accessors.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// MissingFieldError lists the required fields a record lacks.
type MissingFieldError struct {
	Record string
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Record, ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

func missing(record string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return &MissingFieldError{Record: record, Fields: fields}
}
