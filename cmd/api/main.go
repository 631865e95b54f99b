package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldtrace/presence-api/internal/adapters/httpapi"
	memsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/memory/samplerepo"
	memsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/memory/subjectrepo"
	postgres "github.com/fieldtrace/presence-api/internal/adapters/postgres"
	pgsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/postgres/samplerepo"
	pgsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/postgres/subjectrepo"
	sqliteadapter "github.com/fieldtrace/presence-api/internal/adapters/sqlite"
	sqlsamplerepo "github.com/fieldtrace/presence-api/internal/adapters/sqlite/samplerepo"
	sqlsubjectrepo "github.com/fieldtrace/presence-api/internal/adapters/sqlite/subjectrepo"
	"github.com/fieldtrace/presence-api/internal/app/adminauth"
	"github.com/fieldtrace/presence-api/internal/app/identity"
	"github.com/fieldtrace/presence-api/internal/app/presence"
	"github.com/fieldtrace/presence-api/internal/app/telemetry"
	"github.com/fieldtrace/presence-api/internal/platform/auth/staticcreds"
	platformclock "github.com/fieldtrace/presence-api/internal/platform/clock"
	"github.com/fieldtrace/presence-api/internal/platform/config"
	"github.com/fieldtrace/presence-api/internal/platform/metrics"
	samplerepoport "github.com/fieldtrace/presence-api/internal/ports/out/samplerepo"
	subjectrepoport "github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

func main() {
	// Local dev convenience; absent .env files are not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadServerFromEnv()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clk := platformclock.NewSystemClock()

	var (
		subjectRepo subjectrepoport.Repository
		sampleRepo  samplerepoport.Repository
		cleanup     func()
	)

	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		if err := postgres.Migrate(context.Background(), pool); err != nil {
			pool.Close()
			log.Fatalf("postgres migrate: %v", err)
		}
		cleanup = pool.Close
		subjectRepo = pgsubjectrepo.NewRepo(pool)
		sampleRepo = pgsamplerepo.NewRepo(pool)
	case "sqlite":
		db, err := sqliteadapter.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		cleanup = func() { _ = db.Close() }
		subjectRepo = sqlsubjectrepo.NewRepo(db)
		sampleRepo = sqlsamplerepo.NewRepo(db)
	default:
		subjectRepo = memsubjectrepo.NewRepo()
		sampleRepo = memsamplerepo.NewRepo()
	}
	if cleanup != nil {
		defer cleanup()
	}

	mtr := metrics.New(prometheus.DefaultRegisterer)

	presenceSvc := presence.NewService(subjectRepo, sampleRepo, clk)
	presenceSvc.DefaultWindow = cfg.PresenceWindow

	api := httpapi.NewServer(
		identity.NewService(subjectRepo, clk, mtr),
		telemetry.NewService(sampleRepo, subjectRepo, clk, mtr),
		presenceSvc,
		adminauth.NewService(staticcreds.New(cfg.AdminEmail, cfg.AdminPassword)),
	)
	handler := httpapi.NewRouter(api, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("api listening on :%s (storage=%s)", cfg.Port, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
