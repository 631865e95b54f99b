package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldtrace/presence-api/internal/adapters/httpapi"
	memclock "github.com/fieldtrace/presence-api/internal/adapters/memory/clock"
	memsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/memory/samplerepo"
	memsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/memory/subjectrepo"
	pgsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/postgres/samplerepo"
	pgsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/postgres/subjectrepo"
	postgres_testutil "github.com/fieldtrace/presence-api/internal/adapters/postgres/testutil"
	sqliteadapter "github.com/fieldtrace/presence-api/internal/adapters/sqlite"
	sqlsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/sqlite/samplerepo"
	sqlsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/sqlite/subjectrepo"
	"github.com/fieldtrace/presence-api/internal/app/adminauth"
	"github.com/fieldtrace/presence-api/internal/app/identity"
	"github.com/fieldtrace/presence-api/internal/app/presence"
	"github.com/fieldtrace/presence-api/internal/app/telemetry"
	"github.com/fieldtrace/presence-api/internal/platform/auth/staticcreds"
	samplerepoport "github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
	subjectrepoport "github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSQLite   backend = "sqlite"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "sqlite":
		return []backend{backendSQLite}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

const (
	adminEmail    = "admin@itest.local"
	adminPassword = "itest-password"
)

type testServer struct {
	baseURL string
	client  *http.Client
	clk     *memclock.ManualClock
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	var (
		subjectRepo subjectrepoport.Repository
		sampleRepo  samplerepoport.Repository
	)
	switch b {
	case backendMemory:
		subjectRepo = memsubjectrepo.NewRepo()
		sampleRepo = memsamplerepo.NewRepo()
	case backendSQLite:
		db, err := sqliteadapter.Open(filepath.Join(t.TempDir(), "presence.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		subjectRepo = sqlsubjectrepo.NewRepo(db)
		sampleRepo = sqlsamplerepo.NewRepo(db)
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		postgres_testutil.Truncate(t, pool)
		subjectRepo = pgsubjectrepo.NewRepo(pool)
		sampleRepo = pgsamplerepo.NewRepo(pool)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	api := httpapi.NewServer(
		identity.NewService(subjectRepo, clk, nil),
		telemetry.NewService(sampleRepo, subjectRepo, clk, nil),
		presence.NewService(subjectRepo, sampleRepo, clk),
		adminauth.NewService(staticcreds.New(adminEmail, adminPassword)),
	)
	handler := httpapi.NewRouter(api, nil)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		clk:     clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

type subjectJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type sampleJSON struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`
	Address    *string   `json:"address"`
	RecordedAt time.Time `json:"recordedAt"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}
