package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrCartOwner = errors.New("cart must belong to exactly one of user or session")

// NotFoundError unknown slug or id
type NotFoundError struct {
	Resource string
	Key      interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.Key)
}

func NewNotFound(resource string, key interface{}) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// InsufficientStockError requested or combined quantity exceeds stock
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, only %d in stock", e.ProductID, e.Requested, e.Available)
}

// DuplicateReviewError the user already reviewed the product
type DuplicateReviewError struct {
	ProductID int64
	UserID    int64
}

func (e *DuplicateReviewError) Error() string {
	return fmt.Sprintf("user %d already reviewed product %d", e.UserID, e.ProductID)
}

// ValidationError field name -> message
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
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

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}

func IsDuplicateReview(err error) bool {
	var e *DuplicateReviewError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
