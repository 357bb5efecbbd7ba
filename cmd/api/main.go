package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/civicconnect/internal/adapters/classifier"
	"github.com/samirrijal/civicconnect/internal/adapters/exif"
	"github.com/samirrijal/civicconnect/internal/adapters/http"
	natsadapter "github.com/samirrijal/civicconnect/internal/adapters/nats"
	"github.com/samirrijal/civicconnect/internal/adapters/policy"
	"github.com/samirrijal/civicconnect/internal/adapters/postgres"
	"github.com/samirrijal/civicconnect/internal/adapters/storage"
	"github.com/samirrijal/civicconnect/internal/adapters/valkey"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
	"github.com/samirrijal/civicconnect/internal/pkg/config"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
	"github.com/samirrijal/civicconnect/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("civicconnect-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	deps := &http.Dependencies{
		DB:                db,
		HotspotResolution: cfg.Hotspots.Resolution,
		CORSOrigins:       cfg.Server.CORSOrigins,
	}

	// Cache and session storage. Sessions fall back to memory without Valkey.
	var cache ports.CacheService
	var sessionStorage fiber.Storage
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, using in-memory sessions", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
		sessionStorage = valkey.NewSessionStorage(vc, "civic:session:")
	}
	deps.Sessions = http.NewSessionStore(sessionStorage, cfg.Session.TTL(), cfg.Session.CookieSecure)

	// NATS
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, issue events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		deps.NATS = pub.Conn()
	}

	// Photos
	photos, err := storage.NewLocal(cfg.Uploads.Dir)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}
	deps.Photos = photos

	// Authorization
	authz, err := policy.New(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	deps.Authz = authz

	// Use cases
	verifier := usecases.NewPhotoVerifier(exif.NewExtractor(), cfg.Verification.MaxDistanceMeters, cfg.Verification.MaxAge())
	deps.Issues = usecases.NewIssueService(postgres.NewIssueRepo(db), photos, verifier, publisher, cache)
	deps.Users = usecases.NewUserService(postgres.NewUserRepo(db))
	if cfg.Classifier.Enabled {
		tf := classifier.NewTFServing(cfg.Classifier.URL, cfg.Classifier.Model,
			time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)
		deps.Classify = usecases.NewClassifyService(tf)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "CivicConnect API",
	})
	app.Use(recover.New())

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "classifier", cfg.Classifier.Enabled)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
