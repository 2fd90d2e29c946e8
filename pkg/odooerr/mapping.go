// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package odooerr

// Server exception names as reported in the error payload's data.name field.
const (
	NameUserError       = "odoo.exceptions.UserError"
	NameAccessDenied    = "odoo.exceptions.AccessDenied"
	NameAccessError     = "odoo.exceptions.AccessError"
	NameMissingError    = "odoo.exceptions.MissingError"
	NameValidationError = "odoo.exceptions.ValidationError"
	NameSessionExpired  = "odoo.http.SessionExpiredException"
)

// userErrorKinds maps known server exception names to UserError sub-kinds.
var userErrorKinds = map[string]Kind{
	NameUserError:       KindUser,
	NameAccessDenied:    KindAccessDenied,
	NameAccessError:     KindAccess,
	NameMissingError:    KindMissing,
	NameValidationError: KindValidation,
}

// KindForName returns the UserError sub-kind registered for a server
// exception name.
func KindForName(name string) (Kind, bool) {
	k, ok := userErrorKinds[name]
	return k, ok
}

// FromEnvelope builds the most specific failure for a decoded error envelope
// {code, message, data:{name, message, arguments}}. The server-side message in
// data takes precedence over the generic envelope message. Unknown names yield
// a bare *TransportError carrying the raw payload.
func FromEnvelope(code int, message string, data map[string]any) error {
	if m, ok := data["message"].(string); ok && m != "" {
		message = m
	}
	if message == "" {
		message = "unknown error"
	}
	te := TransportError{Code: code, Message: message, Data: data}

	name, _ := data["name"].(string)
	if k, ok := KindForName(name); ok {
		return &UserError{TransportError: te, kind: k}
	}
	if name == NameSessionExpired {
		return &AuthenticationError{Message: "session expired", Err: &te}
	}
	return &te
}

// NewUserError builds a UserError of sub-kind k directly.
func NewUserError(k Kind, code int, message string, data map[string]any) *UserError {
	if !k.Is(KindUser) {
		k = KindUser
	}
	return &UserError{TransportError: TransportError{Code: code, Message: message, Data: data}, kind: k}
}
