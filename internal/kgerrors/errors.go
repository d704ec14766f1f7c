// Package kgerrors defines the error kinds shared across the knowledge
// engine's core packages (§7 of the design).
//
// Callers should match on the sentinel with errors.Is, and pull structured
// detail out with errors.As against the typed wrapper when one exists.
package kgerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per error kind named in §7.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateNaturalKey = errors.New("duplicate natural key")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
	ErrParse              = errors.New("parse error")
	ErrResource           = errors.New("resource limit exceeded")
	ErrMigration          = errors.New("migration failed")
	ErrStorage            = errors.New("storage error")
)

// ValidationError carries the field and reason behind an ErrValidation.
type ValidationError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a *ValidationError for kind/field/reason.
func NewValidation(kind, field, reason string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// ResourceError carries the limit that was violated during Datalog
// evaluation (§4.6.2).
type ResourceError struct {
	Limit string // "rules", "iterations", "tuples", or "time"
	Value int64
	Max   int64
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource limit %q exceeded: %d > %d", e.Limit, e.Value, e.Max)
}

func (e *ResourceError) Unwrap() error { return ErrResource }

// NewResource builds a *ResourceError for the named limit.
func NewResource(limit string, value, max int64) error {
	return &ResourceError{Limit: limit, Value: value, Max: max}
}

// ParseError carries the position of a Datalog syntax error.
type ParseError struct {
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParse builds a *ParseError at pos.
func NewParse(pos int, reason string) error {
	return &ParseError{Pos: pos, Reason: reason}
}

// Wrap wraps err with an operation label, converting sql.ErrNoRows-shaped
// "not found" conditions is left to callers since this package has no
// database dependency; callers should pass ErrNotFound directly when that's
// the condition observed.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Wrapf wraps err with a formatted operation label.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	op := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", op, err)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateNaturalKey reports whether err is or wraps ErrDuplicateNaturalKey.
func IsDuplicateNaturalKey(err error) bool { return errors.Is(err, ErrDuplicateNaturalKey) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
