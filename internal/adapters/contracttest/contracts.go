package contracttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fieldtrace/presence-api/internal/domain"
	samplerepoport "github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
	subjectrepoport "github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

type CleanupFunc = func()

type SubjectRepoFactory func(t *testing.T) (subjectrepoport.Repository, CleanupFunc)

// SampleRepoFactory returns a sample repository together with a subject
// repository backed by the same store, so suites can satisfy referential
// backends by seeding subjects first.
type SampleRepoFactory func(t *testing.T) (samplerepoport.Repository, subjectrepoport.Repository, CleanupFunc)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSubject(id, name, email string) subjectrepoport.Subject {
	return subjectrepoport.Subject{
		ID:        domain.SubjectID(id),
		Name:      name,
		Email:     email,
		Role:      domain.RoleSubject,
		Active:    true,
		CreatedAt: baseTime,
	}
}

// RunSubjectRepo exercises the subject registry contract.
func RunSubjectRepo(t *testing.T, newRepo SubjectRepoFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		want := newSubject("sub-1", "Asha Patel", "asha@x.com")
		if err := repo.Create(ctx, want); err != nil {
			t.Fatalf("Create: %v", err)
		}

		byID, err := repo.GetByID(ctx, want.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if byID.Email != want.Email || byID.Name != want.Name || byID.Role != domain.RoleSubject || !byID.Active {
			t.Fatalf("GetByID returned %+v", byID)
		}
		if !byID.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("CreatedAt=%v, want %v", byID.CreatedAt, want.CreatedAt)
		}

		byEmail, err := repo.GetByEmail(ctx, want.Email)
		if err != nil {
			t.Fatalf("GetByEmail: %v", err)
		}
		if byEmail.ID != want.ID {
			t.Fatalf("GetByEmail id=%v, want %v", byEmail.ID, want.ID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, subjectrepoport.ErrNotFound) {
			t.Fatalf("GetByID err=%v, want ErrNotFound", err)
		}
		if _, err := repo.GetByEmail(ctx, "missing@x.com"); !errors.Is(err, subjectrepoport.ErrNotFound) {
			t.Fatalf("GetByEmail err=%v, want ErrNotFound", err)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		if err := repo.Create(ctx, newSubject("sub-1", "Asha", "asha@x.com")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		err := repo.Create(ctx, newSubject("sub-2", "Imposter", "asha@x.com"))
		if !errors.Is(err, subjectrepoport.ErrEmailInUse) {
			t.Fatalf("Create err=%v, want ErrEmailInUse", err)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		if err := repo.Create(ctx, newSubject("sub-1", "Asha", "asha@x.com")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		err := repo.Create(ctx, newSubject("sub-1", "Asha Again", "asha2@x.com"))
		if !errors.Is(err, subjectrepoport.ErrAlreadyExists) {
			t.Fatalf("Create err=%v, want ErrAlreadyExists", err)
		}
	})

	t.Run("ListFilterAndOrder", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		boss := newSubject("sub-3", "Mira", "mira@x.com")
		boss.Role = domain.RoleSupervisor
		for _, s := range []subjectrepoport.Subject{
			newSubject("sub-2", "zoe", "zoe@x.com"),
			newSubject("sub-1", "Asha", "asha@x.com"),
			boss,
		} {
			if err := repo.Create(ctx, s); err != nil {
				t.Fatalf("Create %s: %v", s.ID, err)
			}
		}

		subs, err := repo.List(ctx, domain.RoleSubject)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(subs) != 2 || subs[0].ID != "sub-1" || subs[1].ID != "sub-2" {
			t.Fatalf("List(subject)=%+v, want [sub-1 sub-2] name-ordered", subs)
		}

		all, err := repo.List(ctx, "")
		if err != nil {
			t.Fatalf("List all: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("List(\"\") len=%d, want 3", len(all))
		}
	})

	t.Run("ConcurrentCreateSameEmail", func(t *testing.T) {
		repo, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.Create(ctx, newSubject(fmt.Sprintf("race-%d", i), "Race", "race@x.com"))
			}(i)
		}
		wg.Wait()

		created := 0
		for i, err := range errs {
			switch {
			case err == nil:
				created++
			case errors.Is(err, subjectrepoport.ErrEmailInUse):
			default:
				t.Fatalf("goroutine %d: unexpected err %v", i, err)
			}
		}
		if created != 1 {
			t.Fatalf("created=%d rows for one email, want exactly 1", created)
		}
	})
}

// RunSampleRepo exercises the append-only sample log contract.
func RunSampleRepo(t *testing.T, newRepo SampleRepoFactory) {
	t.Helper()
	ctx := context.Background()

	seed := func(t *testing.T, subjects subjectrepoport.Repository, ids ...string) {
		t.Helper()
		for _, id := range ids {
			s := newSubject(id, "Subject "+id, id+"@x.com")
			if err := subjects.Create(ctx, s); err != nil {
				t.Fatalf("seed subject %s: %v", id, err)
			}
		}
	}

	sample := func(id, subjectID string, at time.Time) samplerepoport.Sample {
		return samplerepoport.Sample{
			ID:         domain.SampleID(id),
			SubjectID:  domain.SubjectID(subjectID),
			Latitude:   23.0225,
			Longitude:  72.5714,
			RecordedAt: at,
		}
	}

	t.Run("AppendAndHistoryOrder", func(t *testing.T) {
		samples, subjects, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}
		seed(t, subjects, "sub-1", "sub-2")

		acc := 12.5
		addr := "Warehouse 4"
		first := sample("smp-1", "sub-1", baseTime)
		first.Accuracy = &acc
		first.Address = &addr

		// Append out of order; reads must sort by recorded_at desc.
		for _, s := range []samplerepoport.Sample{
			sample("smp-2", "sub-1", baseTime.Add(60*time.Second)),
			first,
			sample("smp-3", "sub-1", baseTime.Add(130*time.Second)),
			sample("smp-9", "sub-2", baseTime.Add(10*time.Second)),
		} {
			if err := samples.Append(ctx, s); err != nil {
				t.Fatalf("Append %s: %v", s.ID, err)
			}
		}

		got, err := samples.ListBySubject(ctx, "sub-1", 0)
		if err != nil {
			t.Fatalf("ListBySubject: %v", err)
		}
		if len(got) != 3 || got[0].ID != "smp-3" || got[1].ID != "smp-2" || got[2].ID != "smp-1" {
			t.Fatalf("history order=%v", idsOf(got))
		}
		if got[2].Accuracy == nil || *got[2].Accuracy != acc {
			t.Fatalf("accuracy not round-tripped: %+v", got[2].Accuracy)
		}
		if got[2].Address == nil || *got[2].Address != addr {
			t.Fatalf("address not round-tripped: %+v", got[2].Address)
		}
		if got[0].Accuracy != nil || got[0].Address != nil {
			t.Fatalf("optional fields should be nil when unset: %+v", got[0])
		}
	})

	t.Run("HistoryLimit", func(t *testing.T) {
		samples, subjects, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}
		seed(t, subjects, "sub-1")

		for i := 0; i < 7; i++ {
			s := sample(fmt.Sprintf("smp-%02d", i), "sub-1", baseTime.Add(time.Duration(i)*time.Second))
			if err := samples.Append(ctx, s); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		got, err := samples.ListBySubject(ctx, "sub-1", 3)
		if err != nil {
			t.Fatalf("ListBySubject: %v", err)
		}
		if len(got) != 3 || got[0].ID != "smp-06" || got[2].ID != "smp-04" {
			t.Fatalf("limited history=%v", idsOf(got))
		}
	})

	t.Run("TimestampTieBreak", func(t *testing.T) {
		samples, subjects, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}
		seed(t, subjects, "sub-1")

		for _, id := range []string{"smp-a", "smp-c", "smp-b"} {
			if err := samples.Append(ctx, sample(id, "sub-1", baseTime)); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		got, err := samples.ListBySubject(ctx, "sub-1", 0)
		if err != nil {
			t.Fatalf("ListBySubject: %v", err)
		}
		if got[0].ID != "smp-c" || got[1].ID != "smp-b" || got[2].ID != "smp-a" {
			t.Fatalf("tie-break order=%v, want id desc", idsOf(got))
		}

		latest, err := samples.LatestPerSubject(ctx)
		if err != nil {
			t.Fatalf("LatestPerSubject: %v", err)
		}
		if latest["sub-1"].ID != "smp-c" {
			t.Fatalf("latest=%v, want smp-c", latest["sub-1"].ID)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		samples, subjects, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}
		seed(t, subjects, "sub-1")

		if err := samples.Append(ctx, sample("smp-1", "sub-1", baseTime)); err != nil {
			t.Fatalf("Append: %v", err)
		}
		err := samples.Append(ctx, sample("smp-1", "sub-1", baseTime.Add(time.Second)))
		if !errors.Is(err, samplerepoport.ErrAlreadyExists) {
			t.Fatalf("Append err=%v, want ErrAlreadyExists", err)
		}
	})

	t.Run("LatestPerSubject", func(t *testing.T) {
		samples, subjects, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}
		seed(t, subjects, "sub-1", "sub-2", "sub-3")

		for _, s := range []samplerepoport.Sample{
			sample("smp-1", "sub-1", baseTime),
			sample("smp-2", "sub-1", baseTime.Add(time.Minute)),
			sample("smp-3", "sub-2", baseTime.Add(2*time.Minute)),
		} {
			if err := samples.Append(ctx, s); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		latest, err := samples.LatestPerSubject(ctx)
		if err != nil {
			t.Fatalf("LatestPerSubject: %v", err)
		}
		if len(latest) != 2 {
			t.Fatalf("latest covers %d subjects, want 2 (sub-3 has no samples)", len(latest))
		}
		if latest["sub-1"].ID != "smp-2" || latest["sub-2"].ID != "smp-3" {
			t.Fatalf("latest=%v", latest)
		}
	})

	t.Run("LatestSinceStrictCutoff", func(t *testing.T) {
		samples, subjects, cleanup := newRepo(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}
		seed(t, subjects, "sub-1", "sub-2", "sub-3", "sub-4")

		now := baseTime.Add(time.Hour)
		window := 300 * time.Second
		for _, s := range []samplerepoport.Sample{
			sample("smp-1", "sub-1", now.Add(-10*time.Second)),
			sample("smp-2", "sub-2", now.Add(-4*time.Minute)),
			sample("smp-3", "sub-3", now.Add(-window)), // exactly at the cutoff
			sample("smp-4", "sub-4", now.Add(-20*time.Minute)),
		} {
			if err := samples.Append(ctx, s); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		latest, err := samples.LatestPerSubjectSince(ctx, now.Add(-window))
		if err != nil {
			t.Fatalf("LatestPerSubjectSince: %v", err)
		}
		if len(latest) != 2 {
			t.Fatalf("window result=%v, want exactly sub-1 and sub-2", latest)
		}
		if _, ok := latest["sub-3"]; ok {
			t.Fatalf("sample exactly at the cutoff must be excluded")
		}
		if latest["sub-1"].ID != "smp-1" || latest["sub-2"].ID != "smp-2" {
			t.Fatalf("window latest=%v", latest)
		}
	})
}

// RunSampleRepoReferential exercises the unknown-subject mapping for backends
// that enforce the subject reference. Memory does not; SQL backends do.
func RunSampleRepoReferential(t *testing.T, newRepo SampleRepoFactory) {
	t.Helper()
	ctx := context.Background()

	samples, _, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	err := samples.Append(ctx, samplerepoport.Sample{
		ID:         "smp-1",
		SubjectID:  "ghost",
		Latitude:   1,
		Longitude:  2,
		RecordedAt: baseTime,
	})
	if !errors.Is(err, samplerepoport.ErrUnknownSubject) {
		t.Fatalf("Append err=%v, want ErrUnknownSubject", err)
	}
}

func idsOf(ss []samplerepoport.Sample) []domain.SampleID {
	out := make([]domain.SampleID, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}
