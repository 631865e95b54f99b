package samplerepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
)

// Repo is an in-memory implementation of samplerepo.Repository.
// It is safe for concurrent use. The log is append-only: nothing here mutates
// or removes a stored sample.
type Repo struct {
	mu sync.RWMutex

	bySubject map[domain.SubjectID][]samplerepo.Sample
	ids       map[domain.SampleID]struct{}
}

func NewRepo() *Repo {
	return &Repo{
		bySubject: make(map[domain.SubjectID][]samplerepo.Sample),
		ids:       make(map[domain.SampleID]struct{}),
	}
}

func (r *Repo) Append(ctx context.Context, s samplerepo.Sample) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[s.ID]; ok {
		return samplerepo.ErrAlreadyExists
	}
	r.ids[s.ID] = struct{}{}
	r.bySubject[s.SubjectID] = append(r.bySubject[s.SubjectID], cloneSample(s))
	return nil
}

func (r *Repo) ListBySubject(ctx context.Context, id domain.SubjectID, limit int) ([]samplerepo.Sample, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := r.bySubject[id]
	out := make([]samplerepo.Sample, 0, len(recs))
	for _, s := range recs {
		out = append(out, cloneSample(s))
	}
	sortSamplesNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) LatestPerSubject(ctx context.Context) (map[domain.SubjectID]samplerepo.Sample, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestWhere(func(samplerepo.Sample) bool { return true }), nil
}

func (r *Repo) LatestPerSubjectSince(ctx context.Context, cutoff time.Time) (map[domain.SubjectID]samplerepo.Sample, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestWhere(func(s samplerepo.Sample) bool {
		// Strict window semantics: a sample recorded exactly at the cutoff is
		// excluded.
		return s.RecordedAt.After(cutoff)
	}), nil
}

func (r *Repo) latestWhere(keep func(samplerepo.Sample) bool) map[domain.SubjectID]samplerepo.Sample {
	out := make(map[domain.SubjectID]samplerepo.Sample)
	for subjectID, recs := range r.bySubject {
		for _, s := range recs {
			if !keep(s) {
				continue
			}
			best, ok := out[subjectID]
			if !ok || newer(s, best) {
				out[subjectID] = cloneSample(s)
			}
		}
	}
	return out
}

// newer reports whether a beats b as "latest": max timestamp, sample id as
// the deterministic tie-break.
func newer(a, b samplerepo.Sample) bool {
	if a.RecordedAt.Equal(b.RecordedAt) {
		return a.ID > b.ID
	}
	return a.RecordedAt.After(b.RecordedAt)
}

func sortSamplesNewestFirst(ss []samplerepo.Sample) {
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].RecordedAt.Equal(ss[j].RecordedAt) {
			return ss[i].ID > ss[j].ID
		}
		return ss[i].RecordedAt.After(ss[j].RecordedAt)
	})
}

func cloneSample(s samplerepo.Sample) samplerepo.Sample {
	out := s
	if s.Accuracy != nil {
		v := *s.Accuracy
		out.Accuracy = &v
	}
	if s.Address != nil {
		v := *s.Address
		out.Address = &v
	}
	return out
}
