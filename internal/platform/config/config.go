package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fieldtrace/presence-api/internal/domain"
)

// Server captures API server configuration.
//
// These values are deployment-provided; mains load them via LoadServerFromEnv
// so wiring code stays lean.
type Server struct {
	Port string

	// StorageBackend selects the repository adapters: memory, sqlite or postgres.
	StorageBackend string
	DatabaseURL    string
	SQLitePath     string

	AdminEmail    string
	AdminPassword string

	PresenceWindow time.Duration
}

func LoadServerFromEnv() (Server, error) {
	cfg := Server{
		Port:           getenv("PORT", "8080"),
		StorageBackend: getenv("STORAGE_BACKEND", "memory"),
		SQLitePath:     getenv("SQLITE_PATH", "./data/presence.db"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		PresenceWindow: domain.DefaultPresenceWindow,
	}

	switch cfg.StorageBackend {
	case "memory", "sqlite":
	case "postgres":
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return Server{}, fmt.Errorf("STORAGE_BACKEND must be one of memory|sqlite|postgres, got %q", cfg.StorageBackend)
	}

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return Server{}, fmt.Errorf("missing required env vars: ADMIN_EMAIL, ADMIN_PASSWORD")
	}

	if v := os.Getenv("PRESENCE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Server{}, fmt.Errorf("PRESENCE_WINDOW must be a duration (e.g. 5m): %w", err)
		}
		if d <= 0 {
			return Server{}, fmt.Errorf("PRESENCE_WINDOW must be positive")
		}
		cfg.PresenceWindow = d
	}

	return cfg, nil
}

// Agent captures capture-loop configuration for the client binary.
type Agent struct {
	APIBaseURL string

	// Name and Email identify the subject; used on first login, after which the
	// session file carries the resolved subject id.
	Name  string
	Email string

	Interval       time.Duration
	AcquireTimeout time.Duration
	MaxFixAge      time.Duration

	// SessionFile overrides the default per-user session path when non-empty.
	SessionFile string

	// BaseLatitude/BaseLongitude seed the simulated locator in dev runs.
	BaseLatitude  float64
	BaseLongitude float64
}

func LoadAgentFromEnv() (Agent, error) {
	cfg := Agent{
		APIBaseURL: getenv("API_BASE_URL", "http://localhost:8080"),
		Name:       os.Getenv("AGENT_NAME"),
		Email:      os.Getenv("AGENT_EMAIL"),
		// One sample per minute, a 15s position fix budget, and cached fixes
		// older than 30s rejected.
		Interval:       time.Minute,
		AcquireTimeout: 15 * time.Second,
		MaxFixAge:      30 * time.Second,
		SessionFile:    os.Getenv("AGENT_SESSION_FILE"),
	}

	for _, v := range []struct {
		env string
		dst *time.Duration
	}{
		{"AGENT_INTERVAL", &cfg.Interval},
		{"AGENT_ACQUIRE_TIMEOUT", &cfg.AcquireTimeout},
		{"AGENT_MAX_FIX_AGE", &cfg.MaxFixAge},
	} {
		s := os.Getenv(v.env)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return Agent{}, fmt.Errorf("%s must be a duration (e.g. 60s): %w", v.env, err)
		}
		if d <= 0 {
			return Agent{}, fmt.Errorf("%s must be positive", v.env)
		}
		*v.dst = d
	}

	for _, v := range []struct {
		env string
		dst *float64
	}{
		{"AGENT_BASE_LAT", &cfg.BaseLatitude},
		{"AGENT_BASE_LON", &cfg.BaseLongitude},
	} {
		s := os.Getenv(v.env)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Agent{}, fmt.Errorf("%s must be a decimal degree value: %w", v.env, err)
		}
		*v.dst = f
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
