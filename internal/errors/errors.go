package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigMissing    ErrorCode = "CONFIG-001"
	ErrCodeConfigUnreadable ErrorCode = "CONFIG-002"

	// Sign-in errors (SIGNIN-001 to SIGNIN-099)
	ErrCodeSignInCancelled ErrorCode = "SIGNIN-001"
	ErrCodeSignInProtocol  ErrorCode = "SIGNIN-002"
	ErrCodeNonceValidation ErrorCode = "SIGNIN-003"

	// Secure storage errors (STORE-001 to STORE-099)
	ErrCodeStoreFailed ErrorCode = "STORE-001"
)

// Sentinels for errors.Is. Matching is by code, so any SignetError carrying the
// same code matches regardless of message or cause.
var (
	ErrConfiguration   = New(ErrCodeConfigMissing, "configuration error")
	ErrSignInCancelled = New(ErrCodeSignInCancelled, "sign-in cancelled")
	ErrSignInProtocol  = New(ErrCodeSignInProtocol, "sign-in protocol error")
	ErrNonceValidation = New(ErrCodeNonceValidation, "ID token validation failed")
	ErrStore           = New(ErrCodeStoreFailed, "secure storage failure")
)

// SignetError is an error with a code, recovery suggestions and an optional cause
type SignetError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *SignetError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *SignetError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SignetError with the same code.
func (e *SignetError) Is(target error) bool {
	t, ok := target.(*SignetError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new SignetError
func New(code ErrorCode, message string) *SignetError {
	return &SignetError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new SignetError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *SignetError {
	return &SignetError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *SignetError) WithSuggestion(suggestion string) *SignetError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *SignetError) WithSuggestions(suggestions ...string) *SignetError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first SignetError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *SignetError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Common error constructors

// NewConfigMissingError reports a required configuration value that was not set
func NewConfigMissingError(field, envVar string) *SignetError {
	return New(ErrCodeConfigMissing, fmt.Sprintf("missing required configuration: %s", field)).
		WithSuggestion(fmt.Sprintf("Set the %s environment variable", envVar)).
		WithSuggestion(fmt.Sprintf("Or add %q to the config file (see 'signet config view')", field))
}

// NewConfigInvalidError reports a configuration value that is set but unusable
func NewConfigInvalidError(field, detail string, suggestions ...string) *SignetError {
	return New(ErrCodeConfigMissing, fmt.Sprintf("invalid configuration %s: %s", field, detail)).
		WithSuggestions(suggestions...)
}

// NewSignInCancelledError reports that the user abandoned the identity provider page
func NewSignInCancelledError(detail string) *SignetError {
	msg := "sign-in was cancelled"
	if detail != "" {
		msg += ": " + detail
	}
	return New(ErrCodeSignInCancelled, msg).
		WithSuggestion("Run 'signet login' to try again")
}

// NewSignInProtocolError reports a malformed or incomplete identity provider response
func NewSignInProtocolError(detail string, cause error) *SignetError {
	return Wrap(ErrCodeSignInProtocol, fmt.Sprintf("identity provider response was invalid: %s", detail), cause).
		WithSuggestion("Run 'signet login' to try again")
}

// NewNonceValidationError reports an ID token that is not bound to the current attempt
func NewNonceValidationError(detail string) *SignetError {
	return New(ErrCodeNonceValidation, fmt.Sprintf("ID token validation failed: %s", detail)).
		WithSuggestion("Any existing session was signed out; run 'signet login' again").
		WithSuggestion("If this repeats, report it: the token may have been replayed or substituted")
}

// NewStoreError wraps a secure storage failure
func NewStoreError(op string, cause error) *SignetError {
	return Wrap(ErrCodeStoreFailed, fmt.Sprintf("secure storage %s failed", op), cause).
		WithSuggestion("Check permissions of the signet data directory")
}
