package subjectrepo

import "errors"

var (
	// ErrNotFound indicates the requested subject does not exist.
	ErrNotFound = errors.New("subject not found")

	// ErrEmailInUse indicates a subject is already registered for the email.
	ErrEmailInUse = errors.New("subject email already in use")

	// ErrAlreadyExists indicates a subject already exists with the provided ID.
	ErrAlreadyExists = errors.New("subject already exists")
)
