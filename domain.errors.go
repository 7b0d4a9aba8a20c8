package main

import (
	"errors"
	"fmt"
	"strings"
)

var ErrQueueFull = errors.New("queue is full")

// FieldError describes a single violated constraint on an input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field which failed validation.
// Only the first failure of a given field is kept.
type ValidationError struct {
	Fields []FieldError
}

// Add records a failure for field unless one already exists.
func (e *ValidationError) Add(field, message string) {
	for _, f := range e.Fields {
		if f.Field == field {
			return
		}
	}
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Check adds a failure for field only when ok is false.
func (e *ValidationError) Check(ok bool, field, message string) {
	if !ok {
		e.Add(field, message)
	}
}

// Has reports whether field already failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil when no failure was recorded.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// InvalidRangeError reports a pagination parameter outside its bounds.
// A zero Max means the parameter has no upper bound.
type InvalidRangeError struct {
	Param string
	Value string
	Min   int
	Max   int
}

func (e *InvalidRangeError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("invalid %s value %q: must be an integer greater than or equal to %d", e.Param, e.Value, e.Min)
	}
	return fmt.Sprintf("invalid %s value %q: must be an integer between %d and %d", e.Param, e.Value, e.Min, e.Max)
}

// NotFoundError is returned when no book exists for a given id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book with ID %d not found", e.ID)
}

// DuplicateError is returned when a title and author pair is already taken.
type DuplicateError struct {
	Title  string
	Author string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("book '%s' by %s already exists", e.Title, e.Author)
}

// StorageError wraps any failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nerr *NotFoundError
	return errors.As(err, &nerr)
}
