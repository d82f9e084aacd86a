// Package domainerrors defines coded errors shared by services, handlers and
// middleware. Services return these; transport layers translate the code into
// a status and envelope without inspecting messages.
package domainerrors

import (
	"errors"
	"sort"
)

// Code classifies an error for transport translation.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTooManyRequests    Code = "rate_limit_exceeded"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error carries a code, a human readable message and, for validation
// failures, per-field detail.
type Error struct {
	Code    Code
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation builds a CodeValidation error carrying field detail.
func Validation(message string, fields FieldErrors) error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message, or the raw error text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// FieldsOf returns field-level detail from the first error that has any.
func FieldsOf(err error) FieldErrors {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return nil
		}
		if len(de.Fields) > 0 {
			return de.Fields
		}
		err = de.Err
	}
	return nil
}

// FieldErrors maps a dotted field path (e.g. "coords.latitude") to messages.
type FieldErrors map[string][]string

// Add records a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Merge copies other into f, prefixing every key with prefix + ".".
func (f FieldErrors) Merge(prefix string, other FieldErrors) {
	for field, msgs := range other {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		f[key] = append(f[key], msgs...)
	}
}

// Fields returns the sorted field paths.
func (f FieldErrors) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Err returns a validation error when any field failed, nil otherwise.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return Validation("invalid request", f)
}
