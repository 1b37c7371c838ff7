package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeDuplicateIdentity indicates an insert with an id that
	// already exists in the store.
	CodeDuplicateIdentity ErrorCode = "DUPLICATE_IDENTITY"

	// CodeNotFound indicates an operation on a record that is not in
	// the store.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeStorageIO indicates the underlying database failed. The
	// triggering operation is rolled back and never retried.
	CodeStorageIO ErrorCode = "STORAGE_IO"
)

// StoreError is the structured error returned by all store operations.
type StoreError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when known.
	RecordID string

	// Err is the underlying cause (driver error for STORAGE_IO).
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("%s: %s (record=%s)", e.Code, e.Message, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsDuplicateIdentity returns true if err is a duplicate-identity error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateIdentity(err error) bool {
	return hasCode(err, CodeDuplicateIdentity)
}

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsStorageIO returns true if err is a storage I/O error.
func IsStorageIO(err error) bool {
	return hasCode(err, CodeStorageIO)
}

func hasCode(err error, code ErrorCode) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// newDuplicateError creates a StoreError for an identity collision.
func newDuplicateError(id string) *StoreError {
	return &StoreError{
		Code:     CodeDuplicateIdentity,
		Message:  "record identity already exists",
		RecordID: id,
	}
}

// newNotFoundError creates a StoreError for a missing record.
func newNotFoundError(id string) *StoreError {
	return &StoreError{
		Code:     CodeNotFound,
		Message:  "record not found",
		RecordID: id,
	}
}

// storageError wraps a driver failure as STORAGE_IO.
func storageError(op string, err error) *StoreError {
	return &StoreError{
		Code:    CodeStorageIO,
		Message: op,
		Err:     err,
	}
}
