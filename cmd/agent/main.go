package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fieldtrace/presence-api/internal/agent/apiclient"
	"github.com/fieldtrace/presence-api/internal/agent/locator"
	"github.com/fieldtrace/presence-api/internal/agent/session"
	"github.com/fieldtrace/presence-api/internal/agent/tracker"
	"github.com/fieldtrace/presence-api/internal/platform/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAgentFromEnv()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		sessionPath, err = session.DefaultPath()
		if err != nil {
			log.Fatalf("session path: %v", err)
		}
	}
	store := session.NewStore(sessionPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(cfg.APIBaseURL)

	sess, ok, err := store.Load()
	if err != nil {
		log.Fatalf("load session: %v", err)
	}
	if ok {
		log.Printf("resuming session for %s (%s)", sess.SubjectName, sess.SubjectID)
	} else {
		if cfg.Name == "" || cfg.Email == "" {
			log.Fatalf("no stored session: AGENT_NAME and AGENT_EMAIL are required for first login")
		}
		subject, err := client.Login(ctx, cfg.Name, cfg.Email)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
		sess = session.Session{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Role:        subject.Role,
		}
		if err := store.Save(sess); err != nil {
			log.Fatalf("save session: %v", err)
		}
		log.Printf("registered as %s (%s)", subject.Name, subject.ID)
	}

	loc := locator.NewSimulated(cfg.BaseLatitude, cfg.BaseLongitude, time.Now().UnixNano())

	trk := tracker.New(loc, client, tracker.Config{
		SubjectID:      sess.SubjectID,
		Interval:       cfg.Interval,
		AcquireTimeout: cfg.AcquireTimeout,
		MaxFixAge:      cfg.MaxFixAge,
	})
	if err := trk.Start(ctx); err != nil {
		log.Fatalf("start tracker: %v", err)
	}
	log.Printf("capture loop running every %s", cfg.Interval)

	select {
	case <-ctx.Done():
		log.Printf("shutting down...")
		trk.Stop()
	case <-trk.Done():
		st := trk.Status()
		if st.State == tracker.StateDenied {
			log.Fatalf("position access denied: %s", st.LastError)
		}
	}
}
