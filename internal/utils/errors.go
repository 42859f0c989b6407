package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ErrEmptyDataset signals that group statistics were requested over zero usable rows.
var ErrEmptyDataset = errors.New("reference dataset has no usable rows")

// MissingFieldError reports a required field absent from a row or a table header.
// Row is 1-based for data rows and 0 when the violation is not tied to a row.
type MissingFieldError struct {
	Field string
	Row   int
}

func (e *MissingFieldError) Error() string {
	if e.Row <= 0 {
		return fmt.Sprintf("missing required field %q", e.Field)
	}
	return fmt.Sprintf("row %d: missing required field %q", e.Row, e.Field)
}

// InputFormatError reports tabular input that cannot be parsed.
type InputFormatError struct {
	Line int
	Err  error
}

func (e *InputFormatError) Error() string {
	if e.Line <= 0 {
		return fmt.Sprintf("invalid input format: %v", e.Err)
	}
	return fmt.Sprintf("invalid input format at line %d: %v", e.Line, e.Err)
}

func (e *InputFormatError) Unwrap() error {
	return e.Err
}

// IsMissingField reports whether err carries a MissingFieldError.
func IsMissingField(err error) bool {
	var target *MissingFieldError
	return errors.As(err, &target)
}

// IsInputFormat reports whether err carries an InputFormatError.
func IsInputFormat(err error) bool {
	var target *InputFormatError
	return errors.As(err, &target)
}
