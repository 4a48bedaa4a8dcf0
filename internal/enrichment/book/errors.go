package book

import "errors"

var (
	// ErrInvalidDraft is returned when a draft violates its required-field invariant.
	ErrInvalidDraft = errors.New("invalid draft record")

	// ErrBookNotFound is returned when no source knows the given identifier.
	ErrBookNotFound = errors.New("book not found")

	// ErrUnknownSource is returned when a search names a source that is not configured.
	ErrUnknownSource = errors.New("unknown source")
)
