package remote

import (
	"errors"
	"fmt"
)

// Error kinds reported by the remote service in its structured error list.
const (
	errKindConflict   = "CONFLICT"
	errKindValidation = "VALIDATION"
)

// TransportError wraps a network-level or server-side failure. The caller
// retries later; the record involved is never discarded.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("remote transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError means the remote service rejected a record. The record is
// logged and skipped; the surrounding sync continues.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "remote validation: " + e.Message }

// ConflictError means a uniqueness violation, e.g. an order id the server
// already holds. Pushes treat it as success.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return "remote conflict: " + e.Message }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
