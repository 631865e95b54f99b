package subjectrepo

import (
	"context"
	"time"

	"github.com/fieldtrace/presence-api/internal/domain"
)

// Subject is the persistence shape used by the subject registry.
// It's used as an internal record, not an HTTP DTO.
type Subject struct {
	ID domain.SubjectID

	// Name is the display name captured at first contact.
	Name string
	// Email is the registration key; stores persist it lowercased and enforce
	// uniqueness (see Create).
	Email string

	Role   domain.Role
	Active bool

	CreatedAt time.Time
}

// Repository provides access to the persisted subject registry.
//
// Uniqueness: Create must be atomic with respect to the email key; two
// concurrent first-contact registrations for the same email must yield exactly
// one row, with the loser observing ErrEmailInUse. A check-then-insert without
// a store-level guarantee is not an acceptable implementation.
//
// Result ordering: List returns subjects ordered by name ascending (id
// tie-break) so behavior is deterministic across backends.
type Repository interface {
	Create(ctx context.Context, s Subject) error

	GetByID(ctx context.Context, id domain.SubjectID) (Subject, error)
	// GetByEmail looks up by the lowercased email key.
	GetByEmail(ctx context.Context, email string) (Subject, error)

	// List returns subjects filtered by role; an empty role returns all.
	List(ctx context.Context, role domain.Role) ([]Subject, error)
}
