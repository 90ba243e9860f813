package weather

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrInvalidInput indicates malformed or missing request data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidID indicates an id that is not in the store's id format.
	ErrInvalidID = errors.New("invalid id")

	// ErrNotFound indicates a location, record or id that cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrUpstream indicates a third-party provider failed or answered garbage.
	ErrUpstream = errors.New("upstream failure")

	// ErrFeatureUnavailable indicates an optional integration is not configured.
	ErrFeatureUnavailable = errors.New("feature unavailable")

	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrPersistence indicates a storage layer failure.
	ErrPersistence = errors.New("persistence failure")
)

// Validation messages produced by the assembler.
const (
	MsgMissingField  = "missing field"
	MsgBadDateFormat = "bad date format"
	MsgStartAfterEnd = "start after end"
)

// ValidationError is a field-level problem that is always safe to show the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Field)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
	}
	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// UpstreamError keeps the provider's original cause for logging. Callers
// outside the process get PublicMessage instead of Error.
type UpstreamError struct {
	Provider string
	Target   string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream provider %s failed for %q: %v", e.Provider, e.Target, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// NewUpstreamError wraps a provider failure.
func NewUpstreamError(provider, target string, err error) error {
	return &UpstreamError{Provider: provider, Target: target, Err: err}
}

// PersistenceError wraps a storage failure for operation Op.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Kind returns a stable machine-readable name for the error's category.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrFeatureUnavailable):
		return "feature_unavailable"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "internal"
	}
}

// PublicMessage returns text that is safe to show outside the process.
// Upstream and storage causes are replaced by a generic message.
func PublicMessage(err error) string {
	switch Kind(err) {
	case "upstream_error":
		var uerr *UpstreamError
		if errors.As(err, &uerr) {
			return fmt.Sprintf("upstream provider %s is unavailable", uerr.Provider)
		}
		return "upstream provider is unavailable"
	case "persistence_error":
		return "storage is unavailable"
	case "feature_unavailable":
		return "feature is not configured"
	case "internal":
		return "internal error"
	default:
		return err.Error()
	}
}
