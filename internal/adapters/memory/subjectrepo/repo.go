package subjectrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

// Repo is an in-memory implementation of subjectrepo.Repository.
// It is safe for concurrent use; the single mutex makes Create an atomic
// check-and-insert, which is what closes the duplicate-registration race.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.SubjectID]subjectrepo.Subject
	idByEmail map[string]domain.SubjectID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.SubjectID]subjectrepo.Subject),
		idByEmail: make(map[string]domain.SubjectID),
	}
}

func (r *Repo) Create(ctx context.Context, s subjectrepo.Subject) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; ok {
		return subjectrepo.ErrAlreadyExists
	}
	if _, ok := r.idByEmail[s.Email]; ok {
		return subjectrepo.ErrEmailInUse
	}

	r.byID[s.ID] = s
	r.idByEmail[s.Email] = s.ID
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.SubjectID) (subjectrepo.Subject, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return subjectrepo.Subject{}, subjectrepo.ErrNotFound
	}
	return s, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (subjectrepo.Subject, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[email]
	if !ok {
		return subjectrepo.Subject{}, subjectrepo.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *Repo) List(ctx context.Context, role domain.Role) ([]subjectrepo.Subject, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]subjectrepo.Subject, 0, len(r.byID))
	for _, s := range r.byID {
		if role != "" && s.Role != role {
			continue
		}
		out = append(out, s)
	}
	sortSubjectsByName(out)
	return out, nil
}

func sortSubjectsByName(ss []subjectrepo.Subject) {
	sort.Slice(ss, func(i, j int) bool {
		ni := strings.ToLower(ss[i].Name)
		nj := strings.ToLower(ss[j].Name)
		if ni == nj {
			return ss[i].ID < ss[j].ID
		}
		return ni < nj
	})
}
