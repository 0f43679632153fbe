package types

import "errors"

// Sentinel errors for the handler-facing failure taxonomy. Services wrap
// these with context; the HTTP layer maps them to status codes and hides
// everything else behind a generic internal failure.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
)
