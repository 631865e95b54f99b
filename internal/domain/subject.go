package domain

import "time"

// Role classifies a subject's function in the roster.
type Role string

const (
	RoleSubject    Role = "subject"
	RoleSupervisor Role = "supervisor"
)

// Subject is the domain representation of a tracked person.
//
// Email is the registration key: there is exactly one Subject per distinct
// email address (stored lowercased). Name is set at first contact and not
// updated by later registrations.
type Subject struct {
	ID    SubjectID
	Name  string
	Email string
	Role  Role

	Active bool

	CreatedAt time.Time
}
