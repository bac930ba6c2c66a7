package core

import (
	"errors"
	"fmt"

	"github.com/andrew/hybrid-recsys/pkg/vector"
)

// Error kinds. Callers match them with errors.Is.
var (
	// ErrValidation marks input that can never succeed as given: malformed or
	// colliding ids, vector dimension mismatches, missing payload records.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing item or collection.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks network or timeout failures talking to the vector store.
	// The core never retries them.
	ErrTransient = errors.New("transient store failure")
)

// Error carries the operation and subject of a failure alongside its kind.
type Error struct {
	Op         string
	Collection string
	Item       string
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Collection != "" {
		msg += fmt.Sprintf(" [collection=%s]", e.Collection)
	}
	if e.Item != "" {
		msg += fmt.Sprintf(" [item=%s]", e.Item)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Validation builds a validation error.
func Validation(op, collection, item string, err error) *Error {
	return &Error{Op: op, Collection: collection, Item: item, Kind: ErrValidation, Err: err}
}

// NotFound builds a not-found error.
func NotFound(op, collection, item string, err error) *Error {
	return &Error{Op: op, Collection: collection, Item: item, Kind: ErrNotFound, Err: err}
}

// FromStore classifies an error returned by a vector.Store call.
func FromStore(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, vector.ErrUnavailable):
		kind = ErrTransient
	case errors.Is(err, vector.ErrCollectionNotFound):
		kind = ErrNotFound
	case errors.Is(err, vector.ErrDimensionMismatch):
		kind = ErrValidation
	}
	return &Error{Op: op, Collection: collection, Kind: kind, Err: err}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is a transient store failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
