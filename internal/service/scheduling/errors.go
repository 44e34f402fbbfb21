package scheduling

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service matches exactly one of these
// with errors.Is.
var (
	ErrValidation               = errors.New("validation failed")
	ErrUnauthorizedRelationship = errors.New("client is not actively linked to provider")
	ErrBookingConflict          = errors.New("timeslot unavailable, may already be booked")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidStateTransition   = errors.New("invalid timeslot state transition")
	ErrForbidden                = errors.New("not allowed to perform this action")
)

var (
	ErrTimeslotNotFound = &NotFoundError{Entity: "timeslot"}
	ErrProviderNotFound = &NotFoundError{Entity: "provider"}
	ErrClientNotFound   = &NotFoundError{Entity: "client"}
)

// ValidationError reports malformed input against a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
