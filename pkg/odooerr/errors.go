// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package odooerr defines the typed failures surfaced by the vodoo client.
// Every failure carries a machine-readable Kind and a human-friendly message,
// so callers can branch on the kind of failure without parsing error strings.
//
// Kinds form a flat set with one two-level branch: TransportError is the base
// for UserError, whose sub-kinds (access denied, access, missing, validation)
// are picked from the exception name the server embeds in its error payload.
package odooerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// KindConfiguration indicates invalid or missing connection settings.
	KindConfiguration Kind = "configuration"
	// KindAuthentication indicates the credential exchange was rejected.
	KindAuthentication Kind = "authentication"
	// KindRecordNotFound indicates a lookup on a specific record returned no rows.
	KindRecordNotFound Kind = "record_not_found"
	// KindRecordOperation indicates a create/write/unlink was rejected.
	KindRecordOperation Kind = "record_operation"
	// KindTransport is the catch-all for RPC-layer failures.
	KindTransport Kind = "transport"
	// KindUser indicates a server-side business rule violation.
	KindUser Kind = "user_error"
	// KindAccessDenied indicates the server refused the login or API key.
	KindAccessDenied Kind = "access_denied"
	// KindAccess indicates missing access rights for the operation.
	KindAccess Kind = "access_error"
	// KindMissing indicates the referenced records no longer exist.
	KindMissing Kind = "missing_error"
	// KindValidation indicates a constraint was violated during create/write.
	KindValidation Kind = "validation_error"
	// KindFieldParsing indicates a caller-supplied value could not be coerced.
	KindFieldParsing Kind = "field_parsing"
)

// parents encodes the taxonomy branch: a kind is also each of its ancestors.
var parents = map[Kind]Kind{
	KindUser:         KindTransport,
	KindAccessDenied: KindUser,
	KindAccess:       KindUser,
	KindMissing:      KindUser,
	KindValidation:   KindUser,
}

// Is reports whether k is target or a descendant of target.
func (k Kind) Is(target Kind) bool {
	for cur := k; cur != ""; cur = parents[cur] {
		if cur == target {
			return true
		}
	}
	return false
}

// Error is implemented by every failure in the taxonomy.
type Error interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the outermost typed failure in err's chain,
// or "" when err carries none.
func KindOf(err error) Kind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return ""
}

// IsKind reports whether any typed failure in err's chain is of kind k,
// honoring the hierarchy (an access error is also a user and transport error).
func IsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(Error); ok && e.Kind().Is(k) {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				if IsKind(inner, k) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		default:
			return false
		}
	}
	return false
}

// ConfigurationError reports invalid connection settings, detected before
// any network call.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Kind() Kind    { return KindConfiguration }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// AuthenticationError reports a rejected credential exchange.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Kind() Kind    { return KindAuthentication }
func (e *AuthenticationError) Unwrap() error { return e.Err }

// RecordNotFoundError reports that a record looked up by id does not exist.
type RecordNotFoundError struct {
	Model string
	ID    int64
	Err   error
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %d not found in %s", e.ID, e.Model)
}

func (e *RecordNotFoundError) Kind() Kind    { return KindRecordNotFound }
func (e *RecordNotFoundError) Unwrap() error { return e.Err }

// RecordOperationError reports a create, write or unlink that was rejected
// for a reason not covered by a more specific kind.
type RecordOperationError struct {
	Model   string
	Method  string
	Message string
	Err     error
}

func (e *RecordOperationError) Error() string {
	msg := fmt.Sprintf("%s on %s failed: %s", e.Method, e.Model, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecordOperationError) Kind() Kind    { return KindRecordOperation }
func (e *RecordOperationError) Unwrap() error { return e.Err }

// TransportError is the catch-all for RPC-layer failures: network errors,
// malformed responses and server errors without a more specific mapping.
// Code and Data hold the server's numeric code and raw error payload.
type TransportError struct {
	Code    int
	Message string
	Data    map[string]any
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("[%d] %v", e.Code, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *TransportError) Kind() Kind    { return KindTransport }
func (e *TransportError) Unwrap() error { return e.Err }

// Name returns the server exception name carried in Data, if any.
func (e *TransportError) Name() string {
	if e == nil || e.Data == nil {
		return ""
	}
	name, _ := e.Data["name"].(string)
	return name
}

// UserError is a server-signaled business rule violation. Its sub-kind is
// chosen from the exception name in the server payload.
type UserError struct {
	TransportError
	kind Kind
}

func (e *UserError) Error() string { return e.TransportError.Error() }
func (e *UserError) Kind() Kind    { return e.kind }

// Unwrap exposes the embedded TransportError so errors.As can match the branch.
func (e *UserError) Unwrap() error { return &e.TransportError }

// FieldParsingError reports a caller value that could not be coerced.
type FieldParsingError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FieldParsingError) Kind() Kind    { return KindFieldParsing }
func (e *FieldParsingError) Unwrap() error { return e.Err }

// Configuration builds a ConfigurationError.
func Configuration(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
