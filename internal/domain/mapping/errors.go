package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation  = errors.New("mapping validation failed")
	ErrNotFound    = errors.New("mapping not found")
	ErrPersistence = errors.New("mapping persistence failed")
	ErrParse       = errors.New("mapping table parse failed")
)

// ValidationError lists the required fields that were empty after normalization.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return ErrValidation.Error() + ": " + e.Reason
	}
	return fmt.Sprintf("%s: required field(s) empty: %s", ErrValidation, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Kind() string         { return "validation" }

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: id %q", ErrNotFound, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Kind() string         { return "not_found" }

// PersistenceError reports a failed read or write of the durable slot.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error        { return e.Err }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
func (e *PersistenceError) Kind() string         { return "persistence" }

// ParseError reports unreadable or wrongly shaped spreadsheet content.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %v", ErrParse, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrParse, e.Source, e.Err)
}

func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Kind() string         { return "parse" }
