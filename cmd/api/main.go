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
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/samirrijal/lplace/internal/adapters/http"
	natsadapter "github.com/samirrijal/lplace/internal/adapters/nats"
	"github.com/samirrijal/lplace/internal/adapters/postgres"
	"github.com/samirrijal/lplace/internal/adapters/valkey"
	"github.com/samirrijal/lplace/internal/core/ports"
	"github.com/samirrijal/lplace/internal/core/usecases"
	"github.com/samirrijal/lplace/internal/pkg/config"
	"github.com/samirrijal/lplace/internal/pkg/logging"
	"github.com/samirrijal/lplace/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("lplace-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Valkey backs both the record cache and session lookup. The interfaces
	// stay nil when it is down so the services skip it.
	var (
		cacheSvc ports.CacheService
		sessions ports.SessionStore
	)
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, sessions cannot be resolved", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
		sessions = cache
	}

	// Sync Channel fan-out: local hub first, NATS to reach other instances.
	instance := uuid.NewString()
	hub := http.NewHub(256)

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, relaying to local connections only", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	relay := usecases.NewRelayService(instance, hub, publisher)
	if pub != nil {
		sub := natsadapter.NewSubscriber(pub.Conn())
		defer sub.Close()
		if err := relay.Listen(ctx, sub); err != nil {
			slog.Warn("nats subscribe failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Drawings: usecases.NewDrawingService(postgres.NewDrawingRepo(db), cacheSvc, cfg.Valkey.CacheTTL),
		Relay:    relay,
		Hub:      hub,
		Identity: http.NewIdentityResolver(cfg.Auth, sessions),
		DB:       db,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}
	if cache != nil {
		deps.Cache = cache
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // a record holds every stroke of one user
		AppName:      "lplace",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, " + cfg.Auth.Header,
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("canvas server starting", "addr", addr, "instance", instance, "auth", cfg.Auth.Mode)
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
