package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
	"mdistance-sync/internal/handlers"
	"mdistance-sync/internal/ingest"
	"mdistance-sync/internal/metrics"
	"mdistance-sync/internal/middleware"
	"mdistance-sync/internal/mirror"
	"mdistance-sync/internal/notify"
	"mdistance-sync/internal/oauth"
	"mdistance-sync/internal/sweep"
	"mdistance-sync/internal/worker"
)

func main() {
	listSubscriptions := flag.String("list-subscriptions", "", "List tracker subscriptions for a user")
	createSubscription := flag.String("create-subscription", "", "Create a tracker subscription for a user")
	clearSubscriptions := flag.String("clear-subscriptions", "", "Delete all tracker subscriptions for a user")
	listUnreported := flag.Bool("list-unreported", false, "List users with unreported activity stats")

	flag.Parse()

	if *listSubscriptions != "" || *createSubscription != "" || *clearSubscriptions != "" || *listUnreported {
		runCLI(*listSubscriptions, *createSubscription, *clearSubscriptions, *listUnreported)
		return
	}

	runServer()
}

func runCLI(listSubsUser, createSubUser, clearSubsUser string, listUnreported bool) {
	// Only errors on stderr for CLI use
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	client := fitbit.NewClient(cfg, db)
	ctx := context.Background()

	switch {
	case listSubsUser != "":
		subs := client.GetSubscriptions(ctx, listSubsUser)
		if len(subs) == 0 {
			fmt.Println("No active subscriptions found.")
			return
		}
		fmt.Printf("Found %d subscription(s):\n\n", len(subs))
		for _, sub := range subs {
			fmt.Printf("ID: %s\n", sub.SubscriptionID)
			fmt.Printf("  Subscriber: %s\n", sub.SubscriberID)
			fmt.Printf("  Collection: %s\n", sub.CollectionType)
			fmt.Println()
		}

	case createSubUser != "":
		if err := client.CreateSubscription(ctx, createSubUser); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Subscription created successfully!")

	case clearSubsUser != "":
		if err := client.ClearSubscriptions(ctx, clearSubsUser); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Subscriptions cleared!")

	case listUnreported:
		stats, err := db.ListUnreportedStats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(stats) == 0 {
			fmt.Println("No unreported stats.")
			return
		}
		for _, s := range stats {
			fmt.Printf("%s: %d steps, %d floors, %.2f mi, %d cal, %d active min\n",
				s.UserID, s.Steps, s.Floors, s.DistanceMiles, s.CaloriesOut, s.ActiveMinutes)
		}
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting mdistance-sync server",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DatabasePath,
		"sweep_schedule", cfg.SweepSchedule,
		"log_level", cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("Database opened successfully")

	// Upstream clients
	fitbitClient := fitbit.NewClient(cfg, db)
	mirrorClient := mirror.NewClient(cfg, db)

	// Notification pipeline
	dispatcher := notify.NewDispatcher(db, mirrorClient, fitbitClient)
	evaluator := notify.NewEvaluator(db, fitbitClient, dispatcher)
	pipeline := ingest.NewPipeline(db, fitbitClient, evaluator)

	// OAuth manager for display-account linking
	oauthManager := oauth.NewManager(cfg, db)

	// Handlers
	notificationHandler := handlers.NewNotificationHandler(db, cfg)
	linkHandler := handlers.NewLinkHandler(db, fitbitClient, cfg)
	settingsHandler := handlers.NewSettingsHandler(db, cfg)
	oauthHandler := handlers.NewOAuthHandler(oauthManager)

	mux := http.NewServeMux()

	// Tracker notification endpoint (GET = verification, POST = batch)
	mux.Handle("/notifications", middleware.WrapHandler(metrics.EndpointNotifications, notificationHandler.HandleNotification))

	// Display-account OAuth endpoints
	mux.Handle("/auth", middleware.WrapHandler(metrics.EndpointAuthStart, oauthHandler.HandleAuthStart))
	mux.Handle("/oauth2callback", middleware.WrapHandler(metrics.EndpointAuthCallback, oauthHandler.HandleCallback))

	// Internal API
	mux.Handle("/internal/link-tracker", middleware.WrapHandler(metrics.EndpointLinkTracker, linkHandler.HandleLink))
	mux.Handle("/internal/unlink-tracker", middleware.WrapHandler(metrics.EndpointLinkTracker, linkHandler.HandleUnlink))
	mux.Handle("/internal/settings", middleware.WrapHandler(metrics.EndpointSettings, settingsHandler.Handle))

	mux.Handle("/health", middleware.WrapHandler(metrics.EndpointHealth, func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(); err != nil {
			http.Error(w, "Unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Background worker draining the notification queue
	workerInstance := worker.NewWorker(db, pipeline)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		if err := workerInstance.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Notification worker failed", "error", err)
		}
	}()

	// Periodic sweep for unreported stats and low batteries
	sweepJob := sweep.NewJob(db, fitbitClient, dispatcher)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		sweepJob.Run(workerCtx)
	}); err != nil {
		logger.Error("Invalid sweep schedule", "schedule", cfg.SweepSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	if cfg.MetricsEnabled {
		go func() {
			logger.Info("Starting queue depth collector")
			metrics.StartQueueDepthCollector(workerCtx, db, 15*time.Second)
		}()
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	cronCtx := scheduler.Stop()
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	// Wait for an in-flight sweep to finish
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
	}

	logger.Info("Server stopped")
}
