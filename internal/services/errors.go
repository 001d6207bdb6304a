package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy surfaced by AuthService. Handlers map these to HTTP statuses.
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateCredential = errors.New("credential already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInternal            = errors.New("internal error")
)

// ValidationError reports malformed input per field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a field problem
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// Empty reports whether no field problems were recorded
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DuplicateCredentialError names the unique field that is already taken.
type DuplicateCredentialError struct {
	Field string
}

func (e *DuplicateCredentialError) Error() string {
	if e.Field == "" {
		return ErrDuplicateCredential.Error()
	}
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *DuplicateCredentialError) Unwrap() error {
	return ErrDuplicateCredential
}
