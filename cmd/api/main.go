package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/admin"
	"github.com/courtside/backend/internal/booking"
	"github.com/courtside/backend/internal/config"
	"github.com/courtside/backend/internal/ledger"
	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/registration"
	"github.com/courtside/backend/internal/router"
	"github.com/courtside/backend/internal/slots"
	"github.com/courtside/backend/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	if err := storage.Migrate(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations (job queue tables)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	loc := cfg.Location()

	// Ledger
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)
	ledgerSvc.ExpiringSoonDays = cfg.ExpiringSoonDays

	// Slots: capacity gate + Sunday generator
	slotsRepo := slots.NewRepository(pool)
	gate := slots.NewGate(slotsRepo)
	generator := slots.NewGenerator(slotsRepo, loc, cfg.GeneratorWeeks)

	// Registrations and bookings
	regRepo := registration.NewRepository(pool)
	bookingRepo := booking.NewRepository(pool)
	bookingSvc := booking.NewService(bookingRepo, regRepo, gate, ledgerSvc, slotsRepo, loc, logger)

	// The periodic generator runs through River so exactly one instance
	// fills the schedule even with several API replicas.
	workers := river.NewWorkers()
	river.AddWorker(workers, slots.NewGenerateWorker(generator, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.GeneratorInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return slots.GenerateSlotsArgs{WeeksAhead: cfg.GeneratorWeeks}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	bookingHandler := &booking.Handler{Service: bookingSvc, Logger: logger}
	creditsHandler := &ledger.Handler{Credits: ledgerSvc, Entries: ledgerRepo, Logger: logger}
	adminHandler := admin.NewHandler(slotsRepo, bookingRepo, bookingSvc, generator, ledgerSvc, logger)

	api := router.New(bookingHandler, creditsHandler, adminHandler)
	authed := middleware.VerifyIdentity(cfg.AuthJWTSecret)(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", authed)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", addr, "timezone", cfg.ClubTimezone)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
