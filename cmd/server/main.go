package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-service/internal/config"
	"account-service/internal/db"
	healthhandler "account-service/internal/health/handler"
	identityservice "account-service/internal/identity/service"
	"account-service/internal/notify"
	notifyhandler "account-service/internal/notify/handler"
	"account-service/internal/policy/engine"
	"account-service/internal/security"
	"account-service/internal/server"
	"account-service/internal/telemetry"
	telemetryotel "account-service/internal/telemetry/otel"
	userrepo "account-service/internal/user/repository"
	userservice "account-service/internal/user/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	var (
		conn *sql.DB
		repo userrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		repo = userrepo.NewPostgresRepository(conn)
	} else {
		log.Println("db: DATABASE_URL not set; using in-memory store (data is lost on restart)")
		repo = userrepo.NewMemoryRepository()
	}
	store := userrepo.NewStore(repo)

	tokens, err := security.NewTokenProvider(cfg.JWTSecret, cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.TokenTTL())
	if err != nil {
		log.Fatalf("security: %v", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost, cfg.HashWorkers)

	var (
		mailer notify.Mailer
		outbox notifyhandler.Reader
	)
	if cfg.MailDevOutbox {
		box := notify.NewOutbox(notify.DefaultRetention)
		mailer, outbox = box, box
		log.Println("mail: dev outbox enabled at GET /api/v1/dev/outbox/:email")
	} else {
		mailer = notify.NewHTTPMailer(cfg.MailAPIKey, cfg.MailAPIURL, cfg.MailFrom)
	}

	authz, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	auth := identityservice.NewAuthService(store, hasher, tokens, mailer, emitter, cfg.ResetTTL())
	deps := server.Deps{
		Auth:                auth,
		Profiles:            userservice.NewProfiles(store, emitter),
		Users:               userservice.NewAdminService(repo, auth),
		Authz:               authz,
		HealthPolicyChecker: authz,
		Outbox:              outbox,
	}
	if conn != nil {
		deps.HealthPinger = healthhandler.Pinger(conn)
	}
	app := server.New(server.Options{
		Production:        cfg.IsProduction(),
		BodyLimit:         cfg.BodyLimitBytes,
		CookieTTL:         cfg.CookieTTL(),
		QueryDefaultLimit: cfg.QueryDefaultLimit,
	}, deps)

	go func() {
		log.Printf("HTTP server listening on %s (env=%s)", cfg.HTTPAddr, cfg.Env)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("shutdown: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := telemetry.Drain(shutdownCtx); err != nil {
		log.Printf("telemetry: drain: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry: shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
