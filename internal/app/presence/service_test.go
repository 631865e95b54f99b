package presence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	memclock "github.com/fieldtrace/presence-api/internal/adapters/memory/clock"
	memsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/memory/samplerepo"
	memsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/memory/subjectrepo"
	"github.com/fieldtrace/presence-api/internal/domain"
	samplerepoport "github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
	subjectrepoport "github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	subjects *memsubjectrepo.Repo
	samples  *memsamplerepo.Repo
	clk      *memclock.ManualClock
}

func newFixture() *fixture {
	subjects := memsubjectrepo.NewRepo()
	samples := memsamplerepo.NewRepo()
	clk := memclock.NewManualClock(start)
	return &fixture{
		svc:      NewService(subjects, samples, clk),
		subjects: subjects,
		samples:  samples,
		clk:      clk,
	}
}

func (f *fixture) addSubject(t *testing.T, id, name string, role domain.Role) {
	t.Helper()
	err := f.subjects.Create(context.Background(), subjectrepoport.Subject{
		ID:        domain.SubjectID(id),
		Name:      name,
		Email:     id + "@x.com",
		Role:      role,
		Active:    true,
		CreatedAt: start,
	})
	if err != nil {
		t.Fatalf("seed subject %s: %v", id, err)
	}
}

func (f *fixture) addSample(t *testing.T, id, subjectID string, at time.Time) {
	t.Helper()
	err := f.samples.Append(context.Background(), samplerepoport.Sample{
		ID:         domain.SampleID(id),
		SubjectID:  domain.SubjectID(subjectID),
		Latitude:   23.0225,
		Longitude:  72.5714,
		RecordedAt: at,
	})
	if err != nil {
		t.Fatalf("seed sample %s: %v", id, err)
	}
}

func TestService_ListSubjects_JoinsLatestSample(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSubject(t, "sub-2", "Zoe", domain.RoleSubject)
	f.addSample(t, "smp-1", "sub-1", start)
	f.addSample(t, "smp-2", "sub-1", start.Add(time.Minute))

	got, err := f.svc.ListSubjects(context.Background(), "")
	if err != nil {
		t.Fatalf("ListSubjects err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2", len(got))
	}
	if got[0].Subject.ID != "sub-1" || got[0].Latest == nil || got[0].Latest.ID != "smp-2" {
		t.Fatalf("sub-1 entry=%+v, want latest smp-2", got[0])
	}
	if got[1].Subject.ID != "sub-2" || got[1].Latest != nil {
		t.Fatalf("sub-2 entry=%+v, want nil latest", got[1])
	}
}

func TestService_ListSubjects_RoleFilter(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSubject(t, "sub-2", "Mira", domain.RoleSupervisor)

	got, err := f.svc.ListSubjects(context.Background(), domain.RoleSupervisor)
	if err != nil {
		t.Fatalf("ListSubjects err=%v", err)
	}
	if len(got) != 1 || got[0].Subject.ID != "sub-2" {
		t.Fatalf("filtered roster=%+v", got)
	}
}

func TestService_History_NewestFirstAndCapped(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	for i := 0; i < 105; i++ {
		f.addSample(t, fmt.Sprintf("smp-%03d", i), "sub-1", start.Add(time.Duration(i)*time.Minute))
	}

	got, err := f.svc.History(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("History err=%v", err)
	}
	if len(got) != 100 {
		t.Fatalf("len=%d, want the 100-sample cap", len(got))
	}
	if got[0].ID != "smp-104" || got[99].ID != "smp-005" {
		t.Fatalf("history window=[%v .. %v], want smp-104 .. smp-005", got[0].ID, got[99].ID)
	}
}

func TestService_History_EmptyForQuietSubject(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)

	got, err := f.svc.History(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("History err=%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len=%d, want empty history", len(got))
	}
}

func TestService_History_UnknownSubject(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.svc.History(context.Background(), "ghost")
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 404 || ae.Code != "SUBJECT_NOT_FOUND" {
		t.Fatalf("err=%v, want SUBJECT_NOT_FOUND 404", err)
	}
}

// A subject reporting at t, t+60s and t+130s: a live read at t+140s sees only
// the last sample, labeled by its 10s age.
func TestService_Live_LatestSampleWins(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSample(t, "smp-1", "sub-1", start)
	f.addSample(t, "smp-2", "sub-1", start.Add(60*time.Second))
	f.addSample(t, "smp-3", "sub-1", start.Add(130*time.Second))

	f.clk.Set(start.Add(140 * time.Second))
	got, err := f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 1 || got[0].Sample.ID != "smp-3" {
		t.Fatalf("live=%+v, want only smp-3", got)
	}
	if got[0].Freshness != domain.FreshnessOnline {
		t.Fatalf("freshness=%v, want online at 10s age", got[0].Freshness)
	}
}

func TestService_Live_WindowBoundaryIsStrict(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSubject(t, "sub-2", "Zoe", domain.RoleSubject)
	now := start.Add(time.Hour)
	f.addSample(t, "smp-1", "sub-1", now.Add(-domain.DefaultPresenceWindow))            // exactly at the cutoff
	f.addSample(t, "smp-2", "sub-2", now.Add(-domain.DefaultPresenceWindow).Add(time.Second)) // just inside

	f.clk.Set(now)
	got, err := f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 1 || got[0].Subject.ID != "sub-2" {
		t.Fatalf("live=%+v, want only sub-2 (cutoff sample excluded)", got)
	}
}

func TestService_Live_FreshnessLabels(t *testing.T) {
	t.Parallel()

	f := newFixture()
	now := start.Add(time.Hour)
	ages := map[string]time.Duration{
		"sub-1": 90 * time.Second,  // online
		"sub-2": 4 * time.Minute,   // recent
		"sub-3": 12 * time.Minute,  // would be offline, outside default window
	}
	i := 0
	for id, age := range ages {
		f.addSubject(t, id, "Subject "+id, domain.RoleSubject)
		f.addSample(t, fmt.Sprintf("smp-%d", i), id, now.Add(-age))
		i++
	}

	f.clk.Set(now)

	// A widened window admits the 12-minute-old sample and labels it offline.
	got, err := f.svc.Live(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 3 {
		t.Fatalf("live=%+v, want all three in a 15m window", got)
	}
	want := map[domain.SubjectID]domain.Freshness{
		"sub-1": domain.FreshnessOnline,
		"sub-2": domain.FreshnessRecent,
		"sub-3": domain.FreshnessOffline,
	}
	for _, e := range got {
		if e.Freshness != want[e.Subject.ID] {
			t.Fatalf("%v freshness=%v, want %v", e.Subject.ID, e.Freshness, want[e.Subject.ID])
		}
	}

	// The default window drops sub-3 entirely.
	got, err = f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("live=%+v, want sub-3 outside the default window", got)
	}
}

func TestService_Live_ConfiguredDefaultWindow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.svc.DefaultWindow = 30 * time.Minute
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSample(t, "smp-1", "sub-1", start)

	// 12 minutes of silence: outside the stock window, inside the configured one.
	f.clk.Set(start.Add(12 * time.Minute))
	got, err := f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 1 || got[0].Subject.ID != "sub-1" {
		t.Fatalf("live=%+v, want sub-1 admitted by the 30m default window", got)
	}

	// An explicit window still takes precedence over the configured default.
	got, err = f.svc.Live(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("live=%+v, want empty under the explicit 5m window", got)
	}
}

func TestService_Live_SortedNewestFirst(t *testing.T) {
	t.Parallel()

	f := newFixture()
	now := start.Add(time.Hour)
	for i, age := range []time.Duration{3 * time.Minute, time.Minute, 2 * time.Minute} {
		id := fmt.Sprintf("sub-%d", i+1)
		f.addSubject(t, id, "Subject "+id, domain.RoleSubject)
		f.addSample(t, fmt.Sprintf("smp-%d", i+1), id, now.Add(-age))
	}

	f.clk.Set(now)
	got, err := f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 3 || got[0].Subject.ID != "sub-2" || got[1].Subject.ID != "sub-3" || got[2].Subject.ID != "sub-1" {
		t.Fatalf("live order=%+v, want newest sample first", got)
	}
}

func TestService_Live_SkipsUnregisteredReporters(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSample(t, "smp-1", "sub-1", start)
	f.addSample(t, "smp-2", "ghost", start) // memory store does not enforce the reference

	f.clk.Set(start.Add(time.Minute))
	got, err := f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 1 || got[0].Subject.ID != "sub-1" {
		t.Fatalf("live=%+v, want ghost reporter skipped", got)
	}
}

func TestService_Live_EmptyWhenAllSilent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addSubject(t, "sub-1", "Asha", domain.RoleSubject)
	f.addSample(t, "smp-1", "sub-1", start)

	f.clk.Set(start.Add(time.Hour))
	got, err := f.svc.Live(context.Background(), 0)
	if err != nil {
		t.Fatalf("Live err=%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("live=%+v, want empty", got)
	}
}
