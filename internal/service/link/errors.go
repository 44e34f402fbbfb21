package link

import "github.com/bookspot/bookspot_backend/internal/service/scheduling"

var (
	ErrLinkNotFound   = &scheduling.NotFoundError{Entity: "client link"}
	ErrClientNotFound = &scheduling.NotFoundError{Entity: "client"}
	ErrAlreadyLinked  = &scheduling.ValidationError{Field: "client_id", Message: "is already linked to this provider"}
	ErrNotAClient     = &scheduling.ValidationError{Field: "client_email", Message: "does not belong to a client account"}
	ErrNotAProvider   = &scheduling.ValidationError{Field: "provider_id", Message: "is not a service provider"}
	ErrInvalidStatus  = &scheduling.ValidationError{Field: "status", Message: "must be active or inactive"}
	ErrForbidden      = scheduling.ErrForbidden
)
