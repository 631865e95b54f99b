package samplerepo

import "errors"

var (
	// ErrAlreadyExists indicates a sample already exists with the provided ID.
	ErrAlreadyExists = errors.New("sample already exists")

	// ErrUnknownSubject indicates the sample references a subject the store
	// does not know (surfaced by backends that enforce the foreign key).
	ErrUnknownSubject = errors.New("sample references unknown subject")
)
