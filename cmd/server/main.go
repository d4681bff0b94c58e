// ProviDATA WhatsApp intake server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/providata-intake/internal/api"
	"github.com/ashureev/providata-intake/internal/chatbot"
	"github.com/ashureev/providata-intake/internal/config"
	"github.com/ashureev/providata-intake/internal/evolution"
	"github.com/ashureev/providata-intake/internal/observability"
	"github.com/ashureev/providata-intake/internal/shared"
	"github.com/ashureev/providata-intake/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "instance", cfg.Evolution.InstanceName, "timezone", cfg.TimeZone)

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, store.WithRetryPolicy(shared.RetryPolicy{
		MaxRetries: cfg.Retry.DatabaseMaxRetries,
		BaseDelay:  cfg.Retry.DatabaseRetryBaseDelay,
	}))
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedPath != "" {
		offices, categories, err := store.LoadSeed(context.Background(), repo, cfg.SeedPath)
		if err != nil {
			slog.Error("Failed to load seed data", "path", cfg.SeedPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Seed data loaded", "offices", offices, "categories", categories)
	}

	gateway := evolution.NewClient(evolution.Config{
		BaseURL:      cfg.Evolution.BaseURL,
		APIKey:       cfg.Evolution.APIKey,
		InstanceName: cfg.Evolution.InstanceName,
		SendDelay:    cfg.Evolution.SendDelay,
		Timeout:      cfg.Evolution.Timeout,
	}, logger)

	engine := chatbot.NewEngine(repo, repo, gateway, chatbot.Config{
		SessionTimeout: cfg.SessionTimeout,
		Location:       cfg.Location(),
		ExpiryNotice:   cfg.ExpiryNotice,
		Logger:         logger,
	})

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)
	webhookHandler := api.NewWebhookHandler(engine, repo, gateway, api.WebhookOptions{
		Token:          cfg.Webhook.Token,
		ProcessTimeout: cfg.ProcessTimeout,
		Logger:         logger,
	})
	if cfg.Webhook.Token == "" {
		slog.Warn("WEBHOOK_TOKEN not set, webhook deliveries are not authenticated")
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	healthHandler.RegisterHealth(r)
	webhookHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start dedup prune worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartPruneWorker(ctx, repo, cfg.Webhook.DedupRetention, cfg.Webhook.PruneInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ProcessTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := webhookHandler.Wait(shutdownCtx); err != nil {
		slog.Error("In-flight messages did not finish", "error", err)
	}

	slog.Info("Server stopped successfully")
}
