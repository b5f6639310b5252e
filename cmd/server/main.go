/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rent dashboard server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), then command-line flags
  2. Initialize logger
  3. Initialize SQLite store
  4. Connect the alert cache (Redis when REDIS_URL is set)
  5. Build classifier, dashboard service and alert scheduler
  6. Configure HTTP router and start the server

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the alert scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close cache and database connections

EXAMPLES:
  ./server -db="./data/rent.db"
  REDIS_URL=redis://localhost:6379/0 ALERT_WINDOW_MODE=calendar ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/rent-engine/api"
	"github.com/warp/rent-engine/cache"
	"github.com/warp/rent-engine/config"
	"github.com/warp/rent-engine/dashboard"
	"github.com/warp/rent-engine/logger"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()

	logger.Init(cfg.Log)
	log := logger.Get()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Alert cache
	var alertCache cache.AlertCache = cache.Noop{}
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.Dial(ctx, cfg.Redis.URL, cfg.Redis.CacheTTL)
		cancel()
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, alert caching disabled")
		} else {
			defer rc.Close()
			alertCache = rc
			log.WithField("ttl", cfg.Redis.CacheTTL).Info("Alert cache connected")
		}
	}

	classifier := rent.NewClassifier(
		rent.WithWindow(cfg.Alerts.WindowDays),
		rent.WithMode(cfg.Alerts.WindowMode),
		rent.WithLogger(log),
	)
	svc := dashboard.NewService(store, alertCache, classifier, log)

	handler := api.NewHandler(store, svc, log)
	scheduler := api.NewAlertScheduler(store, svc, log, cfg.Scheduler.CronSpec)
	handler.Scheduler = scheduler

	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start alert scheduler")
		}
	} else {
		log.Info("Alert scheduler disabled")
	}

	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":        *port,
			"db":          *dbPath,
			"window_days": classifier.Window,
			"mode":        classifier.Mode,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
