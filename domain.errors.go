package main

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is by the transport layer.
var (
	ErrBookNotFound   = errors.New("book not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateTitle = errors.New("a book with the same title already exists")
	ErrConflict       = errors.New("conflicting concurrent modification")
	ErrStorageFailure = errors.New("storage failure")
)

// FieldError describes why a single field failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every offending field of a candidate book.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError returns nil when fields is empty.
func NewValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// NotFoundError reports a missing isbn.
type NotFoundError struct {
	ISBN int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book with isbn %d not found", e.ISBN)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrBookNotFound
}

// DuplicateTitleError reports a title already used by another record.
type DuplicateTitleError struct {
	Title string
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("a book titled %q already exists", e.Title)
}

func (e *DuplicateTitleError) Is(target error) bool {
	return target == ErrDuplicateTitle
}

// ConflictError reports a storage level race the caller may retry.
type ConflictError struct {
	ISBN   int64
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on book with isbn %d: %s", e.ISBN, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StorageError wraps an unexpected repository failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
