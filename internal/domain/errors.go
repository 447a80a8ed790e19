package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared across the gateway, the providers and the HTTP layer.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidToken   = errors.New("invalid token")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrNotFound       = errors.New("not found")
	ErrNetwork        = errors.New("provider unreachable")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ProviderError wraps a failure reported by an external provider. Body keeps the
// provider's structured error response untouched when one was returned.
type ProviderError struct {
	Provider string
	Status   int
	Body     json.RawMessage
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case len(e.Body) > 0:
		b.WriteString(": ")
		b.Write(e.Body)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Detail returns the value to expose as the "error" field of a response: the
// provider's structured body when present, the message otherwise.
func (e *ProviderError) Detail() any {
	if len(e.Body) > 0 && json.Valid(e.Body) {
		return e.Body
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AsProviderError extracts a ProviderError from err.
func AsProviderError(err error) (*ProviderError, bool) {
	var p *ProviderError
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}
