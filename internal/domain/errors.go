package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrInvalidListingState = errors.New("invalid listing state")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrFavoriteExists      = errors.New("favorite already exists")
)

var ErrOnlyPendingUpdatable = fmt.Errorf("%w: only pending listings can be updated", ErrInvalidListingState)

// ValidationError collects field level constraint violations.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records msg for field unless the field already has a violation.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Err returns nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
