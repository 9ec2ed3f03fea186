package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/telhawk-systems/announcer/internal/app"
	"github.com/telhawk-systems/announcer/internal/config"
	"github.com/telhawk-systems/announcer/internal/debounce"
	"github.com/telhawk-systems/announcer/internal/handlers"
	"github.com/telhawk-systems/announcer/internal/ical"
	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/messaging"
	"github.com/telhawk-systems/announcer/internal/server"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("announcer"))
	logging.SetDefault(logger)

	slog.Info("Starting announcer",
		slog.Int("port", cfg.Server.Port),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("timezone", cfg.Extraction.Timezone),
		slog.String("oracle_endpoint", cfg.Oracle.Endpoint),
		slog.String("oracle_model", cfg.Oracle.Model),
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, app.Options{Migrate: true})
	if err != nil {
		slog.Error("Failed to initialize announcer", logging.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	// Conversation buffering
	debouncer := debounce.New(debounce.Config{
		Window:  cfg.Debounce.Window,
		MaxWait: cfg.Debounce.MaxWait,
	}, a.Service.HandleConversation, logger)

	if a.NATS != nil {
		shard := messaging.Shard{Index: cfg.NATS.Shard, Count: cfg.NATS.Shards}
		if err := app.SubscribeConversations(a.NATS, a.Subjects, shard, debouncer, logger); err != nil {
			slog.Error("Failed to subscribe to conversation subjects", logging.Error(err))
			os.Exit(1)
		}
		slog.Info("Subscribed to conversation subjects",
			slog.String("message", a.Subjects.MessageSubject(shard.Index)),
			slog.Int("shards", shard.Count),
			slog.String("cancel", a.Subjects.ConversationCancel),
		)
	}

	handler := handlers.NewHandler(a.Service, debouncer, ical.FeedOptions{
		Name:     "Announcements",
		Timezone: cfg.DisplayLocation().String(),
	}, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Announcer listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down announcer...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}
	// Buffered conversations are dropped; in-flight flushes are cancelled.
	debouncer.Close()

	slog.Info("Announcer stopped gracefully")
}
