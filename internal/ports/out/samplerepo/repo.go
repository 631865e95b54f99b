package samplerepo

import (
	"context"
	"time"

	"github.com/fieldtrace/presence-api/internal/domain"
)

// Sample is the persistence shape of one telemetry record. Records are
// append-only; no repository method mutates or removes them.
type Sample struct {
	ID        domain.SampleID
	SubjectID domain.SubjectID

	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Address   *string

	RecordedAt time.Time
}

// Repository provides access to the append-only sample log.
//
// Ordering: "newest first" means recorded_at descending with id descending as
// the tie-break; "latest" for a subject means the maximum (recorded_at, id)
// pair. The tie-break keeps equal-timestamp results deterministic.
//
// The grouped queries exist so callers never run a per-subject latest lookup
// in a loop; a presence read is at most two repository calls.
type Repository interface {
	Append(ctx context.Context, s Sample) error

	// ListBySubject returns up to limit samples for one subject, newest first.
	// limit <= 0 means no cap.
	ListBySubject(ctx context.Context, id domain.SubjectID, limit int) ([]Sample, error)

	// LatestPerSubject returns the single most recent sample for every subject
	// that has at least one, keyed by subject.
	LatestPerSubject(ctx context.Context) (map[domain.SubjectID]Sample, error)

	// LatestPerSubjectSince behaves like LatestPerSubject restricted to samples
	// with RecordedAt strictly after cutoff. A sample recorded exactly at the
	// cutoff instant is excluded.
	LatestPerSubjectSince(ctx context.Context, cutoff time.Time) (map[domain.SubjectID]Sample, error)
}
