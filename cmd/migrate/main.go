package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/samirrijal/lplace/internal/adapters/postgres"
	"github.com/samirrijal/lplace/internal/pkg/config"
	"github.com/samirrijal/lplace/internal/pkg/logging"
	"github.com/samirrijal/lplace/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("lplace-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	var steps []migrations.Step
	switch os.Args[1] {
	case "up":
		steps, err = migrations.Up()
	case "down":
		steps, err = migrations.Down()
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatalf("read migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	for _, s := range steps {
		if _, err := db.Pool.Exec(ctx, s.SQL); err != nil {
			log.Fatalf("exec %s: %v", s.Name, err)
		}
		slog.Info("migration applied", "file", s.Name)
	}
	slog.Info("all migrations applied", "direction", os.Args[1], "count", len(steps))
}
