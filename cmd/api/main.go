package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/gigboard/backend/internal/applications"
	"github.com/gigboard/backend/internal/auth"
	"github.com/gigboard/backend/internal/config"
	"github.com/gigboard/backend/internal/handlers"
	"github.com/gigboard/backend/internal/jobs"
	"github.com/gigboard/backend/internal/ledger"
	"github.com/gigboard/backend/internal/locks"
	"github.com/gigboard/backend/internal/reconcile"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
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
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	ledgerRepo := ledger.NewRepository(pool)
	jobsRepo := jobs.NewRepository(pool)
	appsRepo := applications.NewRepository(pool)
	authRepo := auth.NewRepository(pool)

	// Per-entity locks: jobs and wallets are separate keyspaces, and the
	// job lock is always taken before any wallet lock.
	jobLocks := locks.NewKeyedMutex(cfg.LockWait)
	walletLocks := locks.NewKeyedMutex(cfg.LockWait)

	// Services
	ledgerSvc := ledger.NewService(ledgerRepo, ledgerRepo, walletLocks)
	appsSvc := applications.NewService(appsRepo, jobsRepo, jobLocks)
	jobsSvc := jobs.NewService(jobsRepo, appsRepo, ledgerSvc, jobLocks, cfg.FeeRateBps, logger)
	authSvc := auth.NewService(authRepo, ledgerRepo, cfg.JWTSecret)

	// Reconciliation worker (sweeps transactions stuck in pending)
	workers := river.NewWorkers()
	river.AddWorker(workers, reconcile.NewSweepWorker(ledgerRepo, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(5*time.Minute),
				func() (river.JobArgs, *river.InsertOpts) {
					return reconcile.SweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Handlers
	authHandler := auth.NewHandler(authSvc, logger)
	jobHandler := &handlers.JobHandler{Svc: jobsSvc, Logger: logger}
	appHandler := &handlers.ApplicationHandler{Registry: appsSvc, Accept: jobsSvc, Logger: logger}
	walletHandler := &handlers.WalletHandler{Pool: pool, Ledger: ledgerSvc, Logger: logger}

	mux := http.NewServeMux()
	RegisterRoutes(mux, authHandler, jobHandler, appHandler, walletHandler, authSvc)

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (runs the periodic sweep)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
