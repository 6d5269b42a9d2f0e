package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation indicates malformed input rejected before touching storage.
	ErrValidation = errors.New("validation failed")
	// ErrPoolExhausted indicates that no reservable number matched the request.
	ErrPoolExhausted = errors.New("pool exhausted")
	// ErrTokenMismatch indicates that a reservation was lost to another writer.
	ErrTokenMismatch = errors.New("reservation token mismatch")
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrStorageUnavailable indicates an I/O failure talking to the row store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCarrierFailure indicates that a purchase, SMS or webhook call failed.
	ErrCarrierFailure = errors.New("carrier failure")
	// ErrProxyImmutable indicates an attempt to attach a second proxy number to a client.
	ErrProxyImmutable = errors.New("client proxy number is immutable")
	// ErrAlreadyExists indicates a duplicate key.
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError describes the offending field.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// PoolExhaustedError carries the availability breakdown seen by the last scan.
type PoolExhaustedError struct {
	Country   string
	Types     []NumberType
	Attempts  int
	Available Availability
}

func (e *PoolExhaustedError) Error() string {
	types := make([]string, 0, len(e.Types))
	for _, t := range e.Types {
		types = append(types, string(t))
	}
	msg := fmt.Sprintf("no number available for country=%s types=%s", e.Country, strings.Join(types, ","))
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if len(e.Available) > 0 {
		msg += " (available: " + e.Available.String() + ")"
	}
	return msg
}

func (e *PoolExhaustedError) Is(target error) bool { return target == ErrPoolExhausted }

// StorageError wraps a row store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

func (e *StorageError) Unwrap() error { return e.Err }

// CarrierError wraps a telephony carrier failure.
type CarrierError struct {
	Op  string
	Err error
}

func (e *CarrierError) Error() string {
	return fmt.Sprintf("carrier %s failed: %v", e.Op, e.Err)
}

func (e *CarrierError) Is(target error) bool { return target == ErrCarrierFailure }

func (e *CarrierError) Unwrap() error { return e.Err }

// Availability counts available numbers per type.
type Availability map[NumberType]int

// Total sums every type.
func (a Availability) Total() int {
	n := 0
	for _, c := range a {
		n += c
	}
	return n
}

func (a Availability) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, a[NumberType(k)]))
	}
	return strings.Join(parts, " ")
}
