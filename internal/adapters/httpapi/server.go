package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldtrace/presence-api/internal/app/adminauth"
	"github.com/fieldtrace/presence-api/internal/app/identity"
	"github.com/fieldtrace/presence-api/internal/app/presence"
	"github.com/fieldtrace/presence-api/internal/app/telemetry"
	"github.com/fieldtrace/presence-api/internal/domain"
)

// Server implements the HTTP handlers on top of the application services.
type Server struct {
	identity  *identity.Service
	telemetry *telemetry.Service
	presence  *presence.Service
	admin     *adminauth.Service
}

func NewServer(
	identitySvc *identity.Service,
	telemetrySvc *telemetry.Service,
	presenceSvc *presence.Service,
	adminSvc *adminauth.Service,
) *Server {
	return &Server{
		identity:  identitySvc,
		telemetry: telemetrySvc,
		presence:  presenceSvc,
		admin:     adminSvc,
	}
}

// --- wire shapes ---

type subjectDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type sampleDTO struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Address    *string   `json:"address,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

func subjectToDTO(s domain.Subject) subjectDTO {
	return subjectDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		Email:     s.Email,
		Role:      string(s.Role),
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}

func sampleToDTO(s domain.LocationSample) sampleDTO {
	return sampleDTO{
		ID:         string(s.ID),
		SubjectID:  string(s.SubjectID),
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
		Accuracy:   s.Accuracy,
		Address:    s.Address,
		RecordedAt: s.RecordedAt,
	}
}

// --- handlers ---

func (s *Server) handleIdentityLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	subject, err := s.identity.Resolve(r.Context(), req.Name, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject": subjectToDTO(subject)})
}

func (s *Server) handleIngestLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID string   `json:"subjectId"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  *float64 `json:"accuracy"`
		Address   *string  `json:"address"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sample, err := s.telemetry.Ingest(r.Context(), telemetry.IngestInput{
		SubjectID: req.SubjectID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
		Address:   req.Address,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sample": sampleToDTO(sample)})
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	// Absent role defaults to the tracked population; supervisors only show up
	// when asked for explicitly.
	role := r.URL.Query().Get("role")
	if role == "" {
		role = string(domain.RoleSubject)
	}
	switch role {
	case string(domain.RoleSubject), string(domain.RoleSupervisor):
	default:
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role filter",
			map[string]any{"role": role})
		return
	}

	list, err := s.presence.ListSubjects(r.Context(), domain.Role(role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type rosterEntry struct {
		subjectDTO
		LatestSample *sampleDTO `json:"latestSample"`
	}
	out := make([]rosterEntry, 0, len(list))
	for _, sp := range list {
		e := rosterEntry{subjectDTO: subjectToDTO(sp.Subject)}
		if sp.Latest != nil {
			d := sampleToDTO(*sp.Latest)
			e.LatestSample = &d
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": out})
}

func (s *Server) handleSubjectHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	samples, err := s.presence.History(r.Context(), domain.SubjectID(id))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]sampleDTO, 0, len(samples))
	for _, smp := range samples {
		out = append(out, sampleToDTO(smp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": out})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.admin.Login(r.Context(), req.Email, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": "admin"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid window",
				map[string]any{"window": "must be a positive duration, e.g. 300s"})
			return
		}
		window = d
	}

	entries, err := s.presence.Live(r.Context(), window)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type liveEntry struct {
		Subject   subjectDTO `json:"subject"`
		Sample    sampleDTO  `json:"sample"`
		Freshness string     `json:"freshness"`
	}
	out := make([]liveEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, liveEntry{
			Subject:   subjectToDTO(e.Subject),
			Sample:    sampleToDTO(e.Sample),
			Freshness: string(e.Freshness),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// --- plumbing ---

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var msg string
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		} else {
			msg = "malformed JSON body"
		}
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", msg, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
