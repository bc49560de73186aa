// Package apperr holds the classified errors returned by the data-access
// layer. Adapters translate backend-native failures into one of these types
// so callers can branch on the class without knowing the backend.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError indicates a missing or invalid credential for a backend.
type AuthError struct {
	Backend string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Backend, e.Message)
}

// ValidationError reports a malformed or missing field. Field is a dotted
// path such as "contacts.0.email".
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects several field errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (errs *ValidationErrors) Add(field, message string) {
	*errs = append(*errs, ValidationError{Field: field, Message: message})
}

// Err returns nil when no errors were collected.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NetworkError wraps a transport or timeout failure against a remote backend.
type NetworkError struct {
	Backend string
	Op      string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s) during %s: %v", e.Backend, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConflictError reports an upsert that violated a uniqueness expectation.
type ConflictError struct {
	Entity string
	Key    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict on %s", e.Entity, e.Key)
}

// IsAuth reports whether err (or any error in its chain) is an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsValidation reports whether err carries a ValidationError or ValidationErrors.
func IsValidation(err error) bool {
	var single *ValidationError
	if errors.As(err, &single) {
		return true
	}
	var many ValidationErrors
	return errors.As(err, &many)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// Fields flattens err into field errors, or returns nil if err is not a
// validation error.
func Fields(err error) []ValidationError {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var single *ValidationError
	if errors.As(err, &single) {
		return []ValidationError{*single}
	}
	return nil
}
