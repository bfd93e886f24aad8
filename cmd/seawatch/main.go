package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/seawatch/seawatch/internal/config"
	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/dedup"
	"github.com/seawatch/seawatch/internal/handlers"
	"github.com/seawatch/seawatch/internal/jobs"
	"github.com/seawatch/seawatch/internal/middleware"
	"github.com/seawatch/seawatch/internal/notify"
)

func main() {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if err := database.InitializeDefaults(db); err != nil {
		log.Fatalf("Failed to initialize defaults: %v", err)
	}

	tuning, err := dedup.LoadTuning(cfg.TuningPath)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	// Authentication
	authEnabled := cfg.AdminPassword != ""
	if !authEnabled {
		log.Println("WARNING: ADMIN_PASSWORD not set, API authentication is disabled")
	}
	passwordHash := ""
	if authEnabled {
		passwordHash, err = middleware.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
	}

	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           authEnabled,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
			"/webhook/*", // Webhooks authenticate via per-instance secrets
		},
	})

	// Dedup engine wiring
	store := database.NewRecordStore(db)
	settings, err := database.GetOrCreateDedupSettings(db)
	if err != nil {
		log.Fatalf("Failed to load dedup settings: %v", err)
	}
	finder := dedup.NewCandidateFinder(store, settings, tuning)

	hub := handlers.NewRunEventHub()

	dedupJob := jobs.NewDedupJob(db, tuning)
	dedupJob.SetNotifier(notify.NewSlackNotifier(db))
	dedupJob.SetProgressFunc(hub.ProgressFunc())

	// HTTP routes
	mux := http.NewServeMux()
	reportHandler := handlers.NewReportHandler(db, finder, tuning)
	handlers.NewHTTPHandler(reportHandler).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuth).SetupRoutes(mux)
	handlers.NewAPIHandler(db, dedupJob, hub).SetupRoutes(mux)

	handler := middleware.NewCORSMiddleware().Wrap(jwtAuth.Wrap(mux))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Background jobs
	stop := make(chan struct{})
	go dedupJob.Start(stop)

	go func() {
		log.Printf("Server listening on :%d", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
