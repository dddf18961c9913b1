package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"temida.org/internal/audit"
	"temida.org/internal/auth"
	"temida.org/internal/config"
	"temida.org/internal/httpapi"
	"temida.org/internal/mail"
	"temida.org/internal/obs"
	"temida.org/internal/ratelimit"
)

var version = "0.3.1"

func main() {
	obs.Init()
	cfg := config.FromEnv(obs.Logger())

	if cfg.AuthSecret == "" {
		log.Fatal("AUTH_SECRET is required")
	}

	tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.Issuer, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	// Postgres when a DSN is provided, in-memory otherwise (local dev).
	var (
		identities auth.IdentityStore
		auditStore audit.Store
		apiOpts    []httpapi.Option
	)
	if cfg.PGDSN != "" {
		db, err := auth.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()
		identities = auth.NewPGStore(db)
		auditStore = audit.NewPGStore(db)
		apiOpts = append(apiOpts, httpapi.WithDB(db))
	} else {
		log.Println("TEMIDA_PG_DSN not set, using in-memory stores")
		identities = auth.NewMemStore()
		auditStore = audit.NewMemStore()
	}

	recorder := audit.NewRecorder(auditStore)
	svc, err := auth.NewService(identities, tokens,
		auth.WithAudit(recorder),
		auth.WithResetTTL(cfg.ResetTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	limiter := ratelimit.NewMemory()
	go func() {
		for range time.Tick(10 * time.Minute) {
			limiter.Purge(time.Hour)
		}
	}()

	apiOpts = append(apiOpts,
		httpapi.WithVersion(version),
		httpapi.WithThrottle(cfg.ThrottleBurst, cfg.ThrottlePerSecond),
	)
	api := httpapi.New(svc, tokens, identities, recorder, limiter,
		&mail.LogSender{BaseURL: cfg.BaseURL}, apiOpts...)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting temida-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
