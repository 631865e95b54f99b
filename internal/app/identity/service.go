package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/platform/metrics"
	clockport "github.com/fieldtrace/presence-api/internal/ports/out/clock"
	"github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

// Service resolves an externally supplied (name, email) pair to a stable
// subject identity, creating one on first contact.
type Service struct {
	repo subjectrepo.Repository
	clk  clockport.Clock
	mtr  *metrics.Metrics

	newSubjectID func() domain.SubjectID
}

func NewService(repo subjectrepo.Repository, clk clockport.Clock, mtr *metrics.Metrics) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		mtr:  mtr,
		newSubjectID: func() domain.SubjectID {
			return domain.SubjectID(uuid.NewString())
		},
	}
}

// Resolve returns the subject registered for email, registering a new one with
// role=subject when the email is unseen. The supplied name only matters on
// first contact; an existing record is returned unchanged.
//
// The first-contact path is race-closed: a concurrent registration for the
// same email loses the store-level uniqueness check and falls back to reading
// the winner's row, so at most one subject exists per email.
func (s *Service) Resolve(ctx context.Context, name, email string) (domain.Subject, error) {
	n := domain.NormalizeHumanName(name)
	if n == "" {
		return domain.Subject{}, &Error{
			Status:  422,
			Code:    "VALIDATION_ERROR",
			Message: "invalid name",
			Details: map[string]any{"name": "must be non-empty"},
		}
	}
	// The email is a key, not a mailbox: no syntactic validation beyond
	// non-empty, per the registration contract.
	e := domain.NormalizeEmail(email)
	if e == "" {
		return domain.Subject{}, &Error{
			Status:  422,
			Code:    "VALIDATION_ERROR",
			Message: "invalid email",
			Details: map[string]any{"email": "must be non-empty"},
		}
	}

	if existing, err := s.repo.GetByEmail(ctx, e); err == nil {
		return toDomain(existing), nil
	} else if !errors.Is(err, subjectrepo.ErrNotFound) {
		return domain.Subject{}, err
	}

	rec := subjectrepo.Subject{
		ID:        s.newSubjectID(),
		Name:      n,
		Email:     e,
		Role:      domain.RoleSubject,
		Active:    true,
		CreatedAt: s.clk.Now(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, subjectrepo.ErrEmailInUse) {
			winner, gerr := s.repo.GetByEmail(ctx, e)
			if gerr != nil {
				return domain.Subject{}, gerr
			}
			return toDomain(winner), nil
		}
		return domain.Subject{}, err
	}
	if s.mtr != nil {
		s.mtr.SubjectsCreated.Inc()
	}
	return toDomain(rec), nil
}

// Get returns a subject by id.
func (s *Service) Get(ctx context.Context, id domain.SubjectID) (domain.Subject, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, subjectrepo.ErrNotFound) {
			return domain.Subject{}, &Error{
				Status:  404,
				Code:    "SUBJECT_NOT_FOUND",
				Message: "subject not found",
			}
		}
		return domain.Subject{}, err
	}
	return toDomain(rec), nil
}

// SetNewSubjectIDForTest overrides subject ID generation for deterministic
// tests. It should not be used in production code.
func (s *Service) SetNewSubjectIDForTest(fn func() domain.SubjectID) {
	if fn != nil {
		s.newSubjectID = fn
	}
}

func toDomain(r subjectrepo.Subject) domain.Subject {
	return domain.Subject{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}
