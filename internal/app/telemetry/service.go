package telemetry

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldtrace/presence-api/internal/domain"
	"github.com/fieldtrace/presence-api/internal/platform/metrics"
	clockport "github.com/fieldtrace/presence-api/internal/ports/out/clock"
	"github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
	"github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

// Service appends validated location samples to the telemetry log.
type Service struct {
	samples  samplerepo.Repository
	subjects subjectrepo.Repository
	clk      clockport.Clock
	mtr      *metrics.Metrics

	newSampleID func() domain.SampleID
}

func NewService(samples samplerepo.Repository, subjects subjectrepo.Repository, clk clockport.Clock, mtr *metrics.Metrics) *Service {
	return &Service{
		samples:  samples,
		subjects: subjects,
		clk:      clk,
		mtr:      mtr,
		newSampleID: func() domain.SampleID {
			return domain.SampleID(uuid.NewString())
		},
	}
}

// IngestInput carries one raw sample. Latitude and longitude are pointers so
// the required-field check can tell "absent" from zero; zero is a valid
// coordinate.
type IngestInput struct {
	SubjectID string
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64
	Address   *string
}

// Ingest validates required fields, stamps the sample with the server clock
// and appends it. The stamped ingestion time is the ordering key; any capture
// time the client measured stays on the client.
//
// Coordinates are stored as supplied; no range bounds are applied.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (domain.LocationSample, error) {
	details := map[string]any{}
	subjectID := strings.TrimSpace(in.SubjectID)
	if subjectID == "" {
		details["subjectId"] = "is required"
	}
	if in.Latitude == nil {
		details["latitude"] = "is required"
	}
	if in.Longitude == nil {
		details["longitude"] = "is required"
	}
	if len(details) > 0 {
		s.reject()
		return domain.LocationSample{}, &Error{
			Status:  422,
			Code:    "VALIDATION_ERROR",
			Message: "missing required fields",
			Details: details,
		}
	}

	if _, err := s.subjects.GetByID(ctx, domain.SubjectID(subjectID)); err != nil {
		if errors.Is(err, subjectrepo.ErrNotFound) {
			s.reject()
			return domain.LocationSample{}, unknownSubjectError(subjectID)
		}
		return domain.LocationSample{}, err
	}

	rec := samplerepo.Sample{
		ID:         s.newSampleID(),
		SubjectID:  domain.SubjectID(subjectID),
		Latitude:   *in.Latitude,
		Longitude:  *in.Longitude,
		Accuracy:   cloneFloatPtr(in.Accuracy),
		Address:    cloneStringPtr(in.Address),
		RecordedAt: s.clk.Now(),
	}
	if err := s.samples.Append(ctx, rec); err != nil {
		// The subject can disappear between the check and the append only in
		// stores that enforce the reference; map it the same way.
		if errors.Is(err, samplerepo.ErrUnknownSubject) {
			s.reject()
			return domain.LocationSample{}, unknownSubjectError(subjectID)
		}
		return domain.LocationSample{}, err
	}
	if s.mtr != nil {
		s.mtr.SamplesIngested.Inc()
	}
	return toDomain(rec), nil
}

// SetNewSampleIDForTest overrides sample ID generation for deterministic
// tests. It should not be used in production code.
func (s *Service) SetNewSampleIDForTest(fn func() domain.SampleID) {
	if fn != nil {
		s.newSampleID = fn
	}
}

func (s *Service) reject() {
	if s.mtr != nil {
		s.mtr.SamplesRejected.Inc()
	}
}

func unknownSubjectError(subjectID string) *Error {
	return &Error{
		Status:  422,
		Code:    "UNKNOWN_SUBJECT",
		Message: "subject does not exist",
		Details: map[string]any{"subjectId": subjectID},
	}
}

func toDomain(r samplerepo.Sample) domain.LocationSample {
	return domain.LocationSample{
		ID:         r.ID,
		SubjectID:  r.SubjectID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Accuracy:   cloneFloatPtr(r.Accuracy),
		Address:    cloneStringPtr(r.Address),
		RecordedAt: r.RecordedAt,
	}
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
