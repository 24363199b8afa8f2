package domain

import "errors"

var (
	// ErrUnauthorized is returned when an operation needs an identity and has none.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOwnerMismatch is returned when a stroke or event names an owner other
	// than the acting identity.
	ErrOwnerMismatch = errors.New("owner mismatch")
	// ErrInvalidRecord is returned for structurally invalid drawing data.
	ErrInvalidRecord = errors.New("invalid drawing record")
	// ErrMalformedEvent is returned for undecodable or incomplete sync events.
	ErrMalformedEvent = errors.New("malformed sync event")
	// ErrNotFound is returned when a repository has no entry.
	ErrNotFound = errors.New("not found")
)
