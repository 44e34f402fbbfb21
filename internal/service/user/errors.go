package user

import (
	"errors"

	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
)

// User errors reuse the scheduling error kinds so callers map them the same
// way.
var (
	ErrUserNotFound       = &scheduling.NotFoundError{Entity: "user"}
	ErrEmailAlreadyExists = &scheduling.ValidationError{Field: "email", Message: "is already in use"}
	ErrInvalidEmail       = &scheduling.ValidationError{Field: "email", Message: "is not a valid address"}
	ErrInvalidTimezone    = &scheduling.ValidationError{Field: "timezone", Message: "is not a known IANA zone"}
	ErrInvalidName        = &scheduling.ValidationError{Field: "name", Message: "must be between 1 and 255 characters"}
	ErrInvalidRole        = &scheduling.ValidationError{Field: "role", Message: "must be admin, service_provider or client"}
	ErrPasswordTooShort   = &scheduling.ValidationError{Field: "password", Message: "must be at least 8 characters"}
	ErrForbidden          = scheduling.ErrForbidden

	errSelfDelete = errors.New("admins cannot delete their own account")
)
