package presence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/fieldtrace/presence-api/internal/domain"
	clockport "github.com/fieldtrace/presence-api/internal/ports/out/clock"
	"github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
	"github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

// Service serves the read side of the telemetry pipeline: roster-with-latest,
// per-subject history and the live window. All three are pure queries.
type Service struct {
	subjects subjectrepo.Repository
	samples  samplerepo.Repository
	clk      clockport.Clock

	// HistoryLimit bounds the per-subject history read.
	HistoryLimit int
	// DefaultWindow is the live window applied when the caller passes none.
	// Mains override it from PRESENCE_WINDOW.
	DefaultWindow time.Duration
}

func NewService(subjects subjectrepo.Repository, samples samplerepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		subjects:      subjects,
		samples:       samples,
		clk:           clk,
		HistoryLimit:  100,
		DefaultWindow: domain.DefaultPresenceWindow,
	}
}

// SubjectPresence pairs a subject with its most recent sample, if any.
type SubjectPresence struct {
	Subject domain.Subject
	Latest  *domain.LocationSample
}

// Entry is one row of the live view: a subject that reported inside the
// window, its winning sample and the freshness label derived at read time.
type Entry struct {
	Subject   domain.Subject
	Sample    domain.LocationSample
	Freshness domain.Freshness
}

// ListSubjects returns the roster filtered by role (empty role = all), each
// entry carrying its single most recent sample or nil. The latest lookup is
// one grouped query, not a per-subject loop.
func (s *Service) ListSubjects(ctx context.Context, role domain.Role) ([]SubjectPresence, error) {
	subs, err := s.subjects.List(ctx, role)
	if err != nil {
		return nil, err
	}
	latest, err := s.samples.LatestPerSubject(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]SubjectPresence, 0, len(subs))
	for _, rec := range subs {
		sp := SubjectPresence{Subject: subjectToDomain(rec)}
		if smp, ok := latest[rec.ID]; ok {
			d := sampleToDomain(smp)
			sp.Latest = &d
		}
		out = append(out, sp)
	}
	return out, nil
}

// History returns the newest HistoryLimit samples for one subject, newest
// first. Unknown subjects are a 404, unlike ingestion-era writes which predate
// the registry check.
func (s *Service) History(ctx context.Context, id domain.SubjectID) ([]domain.LocationSample, error) {
	if _, err := s.subjects.GetByID(ctx, id); err != nil {
		if errors.Is(err, subjectrepo.ErrNotFound) {
			return nil, &Error{
				Status:  404,
				Code:    "SUBJECT_NOT_FOUND",
				Message: "subject not found",
			}
		}
		return nil, err
	}

	recs, err := s.samples.ListBySubject(ctx, id, s.HistoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LocationSample, 0, len(recs))
	for _, r := range recs {
		out = append(out, sampleToDomain(r))
	}
	return out, nil
}

// Live returns one entry per subject whose latest sample is strictly younger
// than window (a sample exactly window old is excluded). Subjects silent for
// the whole window are absent from the result; they still appear in
// ListSubjects. window <= 0 falls back to the service's DefaultWindow.
//
// Freshness is classified against the same "now" used for the cutoff so a
// single read is internally consistent.
func (s *Service) Live(ctx context.Context, window time.Duration) ([]Entry, error) {
	if window <= 0 {
		window = s.DefaultWindow
	}
	if window <= 0 {
		window = domain.DefaultPresenceWindow
	}
	now := s.clk.Now()

	latest, err := s.samples.LatestPerSubjectSince(ctx, now.Add(-window))
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return []Entry{}, nil
	}

	subs, err := s.subjects.List(ctx, "")
	if err != nil {
		return nil, err
	}
	byID := make(map[domain.SubjectID]subjectrepo.Subject, len(subs))
	for _, rec := range subs {
		byID[rec.ID] = rec
	}

	out := make([]Entry, 0, len(latest))
	for subjectID, smp := range latest {
		rec, ok := byID[subjectID]
		if !ok {
			// Pre-hardening rows may reference subjects the registry never
			// had; the live view skips them rather than failing the read.
			continue
		}
		out = append(out, Entry{
			Subject:   subjectToDomain(rec),
			Sample:    sampleToDomain(smp),
			Freshness: domain.ClassifyFreshness(now.Sub(smp.RecordedAt)),
		})
	}
	sortEntriesNewestFirst(out)
	return out, nil
}

func sortEntriesNewestFirst(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		ti, tj := es[i].Sample.RecordedAt, es[j].Sample.RecordedAt
		if ti.Equal(tj) {
			return es[i].Sample.ID > es[j].Sample.ID
		}
		return ti.After(tj)
	})
}

func subjectToDomain(r subjectrepo.Subject) domain.Subject {
	return domain.Subject{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

func sampleToDomain(r samplerepo.Sample) domain.LocationSample {
	out := domain.LocationSample{
		ID:         r.ID,
		SubjectID:  r.SubjectID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		RecordedAt: r.RecordedAt,
	}
	if r.Accuracy != nil {
		v := *r.Accuracy
		out.Accuracy = &v
	}
	if r.Address != nil {
		v := *r.Address
		out.Address = &v
	}
	return out
}
