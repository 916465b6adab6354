package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/tabletop-session/internal/config"
	"github.com/jwebster45206/tabletop-session/internal/handlers"
	"github.com/jwebster45206/tabletop-session/internal/logger"
	"github.com/jwebster45206/tabletop-session/internal/middleware"
	"github.com/jwebster45206/tabletop-session/internal/services"
	"github.com/jwebster45206/tabletop-session/internal/services/events"
	"github.com/jwebster45206/tabletop-session/internal/storage"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Tabletop Session API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_driver", cfg.StorageDriver,
		"narrative_provider", cfg.NarrativeProvider)

	narrator, err := services.NewNarrativeServiceFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to configure narrative service", "error", err)
		os.Exit(1)
	}

	ruleSet := rules.Default()
	if cfg.RulesPath != "" {
		ruleSet, err = rules.Load(cfg.RulesPath)
		if err != nil {
			log.Error("Failed to load rules", "error", err, "path", cfg.RulesPath)
			os.Exit(1)
		}
		log.Info("Loaded rules", "path", cfg.RulesPath)
	} else {
		log.Info("Using default rules")
	}

	store, redisClient, err := storage.Open(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storage.WaitReady(storageCtx, store); err != nil {
		logger.WithError(log, err).Error("Failed to connect to storage")
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	sessionCfg := session.Config{
		Storage:       store,
		Narrator:      narrator,
		Rules:         ruleSet,
		Logger:        log,
		HistoryWindow: cfg.HistoryWindow,
		SummaryEvery:  cfg.SummaryEvery,
	}

	mux := http.NewServeMux()

	checks := []handlers.HealthCheck{handlers.StorageCheck(store)}
	if redisClient != nil {
		broadcaster := events.NewBroadcaster(redisClient, log)
		sessionCfg.Publisher = broadcaster
		mux.Handle("/v1/events/campaigns/", handlers.NewEventsHandler(broadcaster, store, log))
		checks = append(checks, handlers.EventBusCheck(redisClient))
		log.Info("Event streaming enabled")
	}

	registry := session.NewRegistry(sessionCfg)
	mux.Handle("/health", handlers.NewHealthHandler(log, checks...).WithSessions(registry.Len))

	campaignHandler := handlers.NewCampaignHandler(log, store, registry)
	mux.Handle("/v1/campaigns", campaignHandler)
	mux.Handle("/v1/campaigns/", campaignHandler)

	handler := middleware.Logger(log)(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout removed to enable streaming - streaming endpoints handle their own timeouts
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
