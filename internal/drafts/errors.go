package drafts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors for product drafts.
var (
	ErrNotFound             = errors.New("product draft not found")
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateCombination = errors.New("a product draft with this molecule combination already exists")
	ErrCategoryNotFound     = errors.New("selected category does not exist")
	ErrPriceAboveMRP        = errors.New("sales price cannot be higher than MRP")
	ErrNegativePrice        = errors.New("price must not be negative")
	ErrPriceTooLarge        = errors.New("price must not be greater than 9999999999.99")
	ErrNotPublished         = errors.New("product draft is not published")
	ErrUnknownStatus        = errors.New("unknown publish status")
	ErrEmptyBatch           = errors.New("at least one product draft id is required")
	ErrForbidden            = errors.New("permanently deleting product drafts requires elevated permission")

	// ErrCodeTaken signals that another transaction committed the same product
	// code first. Publish retries allocation when it sees it.
	ErrCodeTaken = errors.New("product code already allocated")
)

// ValidationError reports per-field validation failures.
type ValidationError struct {
	Fields map[string]string
	causes []error
}

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: err.Error()}, causes: []error{err}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap exposes the domain errors behind individual fields.
func (e *ValidationError) Unwrap() []error {
	return e.causes
}

// FieldErrors returns the field → message map.
func (e *ValidationError) FieldErrors() map[string]string {
	return e.Fields
}
