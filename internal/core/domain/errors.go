package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFileRead          = errors.New("file read error")
	ErrConversion        = errors.New("conversion error")
	ErrAnalysis          = errors.New("analysis error")
	ErrMalformedResponse = errors.New("malformed analysis response")
	ErrRateLimited       = errors.New("rate limited")
	ErrValidation        = errors.New("validation error")
	ErrDuplicate         = errors.New("duplicate detected")
	ErrEnvironment       = errors.New("environment failure")
	ErrTemporary         = errors.New("temporary failure")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCanceled          = errors.New("run canceled")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ConversionError carries the message reported by the external tool that
// failed to turn a source file into text.
type ConversionError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "conversion error"
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Message, e.Err)
}

func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConversion}
	}
	return []error{ErrConversion, e.Err}
}

// ErrorKindName maps an error onto the report vocabulary.
func ErrorKindName(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrCanceled):
		return "canceled"
	case IsKind(err, ErrFileRead):
		return "file_read"
	case IsKind(err, ErrConversion):
		return "conversion"
	case IsKind(err, ErrDuplicate):
		return "duplicate"
	case IsKind(err, ErrValidation):
		return "validation"
	case IsKind(err, ErrRateLimited):
		return "rate_limit"
	case IsKind(err, ErrMalformedResponse):
		return "malformed_response"
	case IsKind(err, ErrAnalysis):
		return "analysis"
	default:
		return "internal"
	}
}
