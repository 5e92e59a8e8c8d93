// Package apierr defines the error taxonomy shared by the schema, query and
// projection layers.
//
// Every error raised by this module is an *Error carrying a Code. Callers that
// translate errors into a transport (HTTP status, CLI exit code) switch on the
// code via the Is* helpers and never parse messages.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code categorizes errors.
type Code string

const (
	// CodeDefinition indicates an invalid model or binding definition.
	// Raised at startup, never during a request.
	CodeDefinition Code = "DEFINITION_ERROR"

	// CodeValidation indicates an invalid field selection or client value.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeMissingField indicates a direct-copy field absent from a record.
	CodeMissingField Code = "MISSING_FIELD"

	// CodePermission indicates the permission gate rejected a record.
	CodePermission Code = "PERMISSION_DENIED"

	// CodeResolution indicates a storage lookup or association call failed.
	CodeResolution Code = "RESOLUTION_ERROR"

	// CodeNotFound indicates a requested record does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInternal indicates a programming error inside the module.
	CodeInternal Code = "INTERNAL"
)

// Error is the structured error type used across the module.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Model names the model involved, if any.
	Model string

	// Field names the field involved, if any.
	Field string

	// Fields lists every offending field for batched validation errors.
	Fields []string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.Model != "" && e.Field != "":
		fmt.Fprintf(&b, " (model=%s, field=%s)", e.Model, e.Field)
	case e.Model != "":
		fmt.Fprintf(&b, " (model=%s)", e.Model)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Definition creates a definition error.
func Definition(model, format string, args ...any) *Error {
	return &Error{Code: CodeDefinition, Model: model, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidFields creates the single batched report for unknown or
// non-selectable field names. The message pluralizes on count.
func InvalidFields(names []string) *Error {
	suffix := ""
	if len(names) > 1 {
		suffix = "s"
	}
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid field%s: %s", suffix, strings.Join(names, ",")),
		Fields:  append([]string(nil), names...),
	}
}

// MissingField creates an error for a field absent from a server record.
func MissingField(model, field string) *Error {
	return &Error{
		Code:    CodeMissingField,
		Message: "field missing from record",
		Model:   model,
		Field:   field,
	}
}

// Permission creates a permission error.
func Permission(model, format string, args ...any) *Error {
	return &Error{Code: CodePermission, Model: model, Message: fmt.Sprintf(format, args...)}
}

// Resolution wraps a storage or association failure for a field.
func Resolution(model, field string, err error) *Error {
	return &Error{
		Code:    CodeResolution,
		Message: "failed to resolve field",
		Model:   model,
		Field:   field,
		Err:     err,
	}
}

// NotFound creates a not-found error.
func NotFound(model, format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Model: model, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsDefinitionError reports whether err is a definition error.
func IsDefinitionError(err error) bool { return is(err, CodeDefinition) }

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool { return is(err, CodeValidation) }

// IsMissingFieldError reports whether err is a missing-field error.
func IsMissingFieldError(err error) bool { return is(err, CodeMissingField) }

// IsPermissionError reports whether err is a permission error.
func IsPermissionError(err error) bool { return is(err, CodePermission) }

// IsResolutionError reports whether err is a resolution error.
func IsResolutionError(err error) bool { return is(err, CodeResolution) }

// IsNotFoundError reports whether err is a not-found error.
func IsNotFoundError(err error) bool { return is(err, CodeNotFound) }

// Status maps an error to an HTTP status hint. Transports are free to ignore it.
func Status(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodePermission:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
