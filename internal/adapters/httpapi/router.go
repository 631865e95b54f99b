package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter: handlers decode and validate the wire
// shapes and delegate every decision to the application services.
func NewRouter(s *Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Infra endpoints, outside the API surface proper.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/identity/login", s.handleIdentityLogin)
	r.Post("/location", s.handleIngestLocation)
	r.Post("/admin/login", s.handleAdminLogin)
	r.Route("/presence", func(r chi.Router) {
		r.Get("/subjects", s.handleListSubjects)
		r.Get("/subjects/{id}/history", s.handleSubjectHistory)
		r.Get("/live", s.handleLive)
	})

	return r
}
