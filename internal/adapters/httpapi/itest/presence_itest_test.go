package itest

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

// The whole reporting round trip: register, report three times a minute-ish
// apart, then read the live view and the history back.
func TestPresenceRoundTrip(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		b := b
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			status, body := srv.doJSON(t, http.MethodPost, "/identity/login", map[string]any{
				"name":  "Asha Patel",
				"email": "Asha@Example.com",
			})
			if status != http.StatusOK {
				t.Fatalf("login status=%d body=%s", status, body)
			}
			first := mustUnmarshal[struct {
				Subject subjectJSON `json:"subject"`
			}](t, body)
			if first.Subject.ID == "" || first.Subject.Email != "asha@example.com" || first.Subject.Role != "subject" {
				t.Fatalf("subject=%+v", first.Subject)
			}

			// A second login with the same email is the same identity.
			status, body = srv.doJSON(t, http.MethodPost, "/identity/login", map[string]any{
				"name":  "A. Patel",
				"email": "asha@example.com",
			})
			if status != http.StatusOK {
				t.Fatalf("re-login status=%d body=%s", status, body)
			}
			again := mustUnmarshal[struct {
				Subject subjectJSON `json:"subject"`
			}](t, body)
			if again.Subject.ID != first.Subject.ID || again.Subject.Name != "Asha Patel" {
				t.Fatalf("re-login subject=%+v, want original identity", again.Subject)
			}

			subjectID := first.Subject.ID
			for i, offset := range []time.Duration{0, 60 * time.Second, 130 * time.Second} {
				srv.clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset))
				status, body = srv.doJSON(t, http.MethodPost, "/location", map[string]any{
					"subjectId": subjectID,
					"latitude":  23.0225 + float64(i)*0.001,
					"longitude": 72.5714,
					"accuracy":  10.0,
				})
				if status != http.StatusCreated {
					t.Fatalf("ingest %d status=%d body=%s", i, status, body)
				}
			}

			srv.clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(140 * time.Second))
			status, body = srv.doJSON(t, http.MethodGet, "/presence/live", nil)
			if status != http.StatusOK {
				t.Fatalf("live status=%d body=%s", status, body)
			}
			live := mustUnmarshal[struct {
				Entries []struct {
					Subject   subjectJSON `json:"subject"`
					Sample    sampleJSON  `json:"sample"`
					Freshness string      `json:"freshness"`
				} `json:"entries"`
			}](t, body)
			if len(live.Entries) != 1 {
				t.Fatalf("live entries=%+v, want one", live.Entries)
			}
			e := live.Entries[0]
			if e.Subject.ID != subjectID || e.Freshness != "online" {
				t.Fatalf("live entry=%+v, want subject online", e)
			}
			if e.Sample.Latitude != 23.0225+2*0.001 {
				t.Fatalf("live sample=%+v, want the newest report", e.Sample)
			}

			status, body = srv.doJSON(t, http.MethodGet, "/presence/subjects/"+subjectID+"/history", nil)
			if status != http.StatusOK {
				t.Fatalf("history status=%d body=%s", status, body)
			}
			hist := mustUnmarshal[struct {
				Samples []sampleJSON `json:"samples"`
			}](t, body)
			if len(hist.Samples) != 3 {
				t.Fatalf("history=%+v, want 3 samples", hist.Samples)
			}
			if !hist.Samples[0].RecordedAt.After(hist.Samples[1].RecordedAt) ||
				!hist.Samples[1].RecordedAt.After(hist.Samples[2].RecordedAt) {
				t.Fatalf("history not newest-first: %+v", hist.Samples)
			}

			status, body = srv.doJSON(t, http.MethodGet, "/presence/subjects", nil)
			if status != http.StatusOK {
				t.Fatalf("subjects status=%d body=%s", status, body)
			}
			roster := mustUnmarshal[struct {
				Subjects []struct {
					subjectJSON
					LatestSample *sampleJSON `json:"latestSample"`
				} `json:"subjects"`
			}](t, body)
			if len(roster.Subjects) != 1 || roster.Subjects[0].LatestSample == nil {
				t.Fatalf("roster=%+v, want one subject with a latest sample", roster.Subjects)
			}
		})
	}
}

func TestIngestRejections(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		b := b
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			status, body := srv.doJSON(t, http.MethodPost, "/location", map[string]any{
				"subjectId": "nobody",
				"latitude":  1.0,
				"longitude": 2.0,
			})
			requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "UNKNOWN_SUBJECT")

			status, body = srv.doJSON(t, http.MethodPost, "/location", map[string]any{
				"latitude": 1.0,
			})
			requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
		})
	}
}

func TestHistoryUnknownSubject(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		b := b
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			status, body := srv.doJSON(t, http.MethodGet, "/presence/subjects/ghost/history", nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "SUBJECT_NOT_FOUND")
		})
	}
}

func TestAdminLogin(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		b := b
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			status, body := srv.doJSON(t, http.MethodPost, "/admin/login", map[string]any{
				"email":    adminEmail,
				"password": adminPassword,
			})
			if status != http.StatusOK {
				t.Fatalf("admin login status=%d body=%s", status, body)
			}
			got := mustUnmarshal[struct {
				Role string `json:"role"`
			}](t, body)
			if got.Role != "admin" {
				t.Fatalf("role=%q, want admin", got.Role)
			}

			status, body = srv.doJSON(t, http.MethodPost, "/admin/login", map[string]any{
				"email":    adminEmail,
				"password": "wrong",
			})
			requireErrorCode(t, status, body, http.StatusUnauthorized, "AUTH_FAILED")
		})
	}
}

func TestHistoryCap(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		b := b
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			status, body := srv.doJSON(t, http.MethodPost, "/identity/login", map[string]any{
				"name":  "Asha",
				"email": "asha@x.com",
			})
			if status != http.StatusOK {
				t.Fatalf("login status=%d body=%s", status, body)
			}
			subject := mustUnmarshal[struct {
				Subject subjectJSON `json:"subject"`
			}](t, body).Subject

			base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 110; i++ {
				srv.clk.Set(base.Add(time.Duration(i) * time.Second))
				status, body = srv.doJSON(t, http.MethodPost, "/location", map[string]any{
					"subjectId": subject.ID,
					"latitude":  1.0,
					"longitude": 2.0,
				})
				if status != http.StatusCreated {
					t.Fatalf("ingest %d status=%d body=%s", i, status, body)
				}
			}

			status, body = srv.doJSON(t, http.MethodGet, fmt.Sprintf("/presence/subjects/%s/history", subject.ID), nil)
			if status != http.StatusOK {
				t.Fatalf("history status=%d body=%s", status, body)
			}
			hist := mustUnmarshal[struct {
				Samples []sampleJSON `json:"samples"`
			}](t, body)
			if len(hist.Samples) != 100 {
				t.Fatalf("history len=%d, want the 100-sample cap", len(hist.Samples))
			}
			if !hist.Samples[0].RecordedAt.Equal(base.Add(109 * time.Second)) {
				t.Fatalf("newest=%v, want the final report", hist.Samples[0].RecordedAt)
			}
		})
	}
}
