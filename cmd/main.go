package main

import (
	"context"
	"credit-ledger/internal/api"
	mw "credit-ledger/internal/api/middleware"
	"credit-ledger/internal/batch"
	"credit-ledger/internal/config"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/domain/session"
	"credit-ledger/internal/event"
	redisstore "credit-ledger/internal/infrastructure/cache/redis"
	"credit-ledger/internal/infrastructure/database/postgres"
	"credit-ledger/internal/infrastructure/database/sqlite"
	"credit-ledger/internal/infrastructure/logging"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// @title CrediKhaata API
// @version 1.0
// @description Credit ledger for a single shop: customers, loans sold on credit, repayments and derived customer status.
// @termsOfService http://credit-ledger.local/terms/

// @contact.name API Support
// @contact.email support@credit-ledger.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	store := initializeStore(cfg, logger)
	publisher, amqpConn := initializePublisher(cfg, logger)

	ledgerService, guard := initializeServices(cfg, store, publisher, logger)
	sweepJob := batch.NewOverdueSweepJob(ledgerService, publisher, logger)
	cronScheduler := startBatchJobs(cfg, logger, sweepJob)

	rateLimiter := mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger)
	router := api.SetupRouter(ledgerService, guard, rateLimiter, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)

	rateLimiter.Stop()
	closeResources(store, amqpConn, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed(), "store_driver", cfg.Store.Driver)

	if err := validateAuth(cfg.Server.Auth); err != nil {
		logger.Error("Invalid auth configuration", "error", err)
		os.Exit(1)
	}

	return cfg, logger
}

func validateAuth(cfg config.AuthConfig) error {
	if cfg.Enabled && cfg.JWTSecret == "" {
		return errors.New("server.auth.jwtSecret must be set when auth is enabled")
	}
	return nil
}

func initializeStore(cfg *config.Config, logger *slog.Logger) ledger.RecordStore {
	logger.Info("Initializing record store...", "driver", cfg.Store.Driver)
	store, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize record store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	return store
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.RecordStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		store := postgres.NewRecordStore(pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "sqlite", "":
		store, err := sqlite.Open(ctx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return redisstore.NewRecordStore(client, cfg.Redis.KeyPrefix, logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initializePublisher(cfg *config.Config, logger *slog.Logger) (event.EventPublisher, *amqp.Connection) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, ledger events will only be logged")
		return event.NewNoopPublisher(logger), nil
	}

	logger.Info("Connecting to RabbitMQ...", "host", cfg.RabbitMQ.Host, "port", cfg.RabbitMQ.Port)
	conn, err := amqp.Dial(rabbitMQURL(cfg.RabbitMQ))
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		conn.Close()
		os.Exit(1)
	}
	return publisher, conn
}

func rabbitMQURL(cfg config.RabbitMQConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Host, cfg.Port)
}

func initializeServices(cfg *config.Config, store ledger.RecordStore, publisher event.EventPublisher, logger *slog.Logger) (ledger.LedgerService, session.Guard) {
	logger.Info("Initializing application components...")

	guard, err := session.NewGuard(cfg.Session.Identifier, cfg.Session.Password, logger)
	if err != nil {
		logger.Error("Failed to initialize session guard", "error", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewLedgerService(context.Background(), store, publisher, logger)
	if err != nil {
		logger.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}
	return ledgerService, guard
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		} else {
			logger.Info("HTTP server shutdown initiated.")
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}
	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
}

func closeResources(store ledger.RecordStore, amqpConn *amqp.Connection, logger *slog.Logger) {
	logger.Info("Closing record store...")
	if err := store.Close(); err != nil {
		logger.Error("Failed to close record store", "error", err)
	}
	if amqpConn != nil {
		logger.Info("Closing RabbitMQ connection...")
		if err := amqpConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection", "error", err)
		}
	}
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, sweepJob *batch.OverdueSweepJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.OverdueSweepSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 * * * *"
		logger.Warn("Overdue sweep schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.OverdueSweepTimeout
	if jobTimeout <= 0 {
		jobTimeout = 1 * time.Hour
	} else {
		jobTimeout = jobTimeout * time.Second
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "OverdueSweep")
		jobLogger.Info("Cron triggered: Running overdue sweep job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := sweepJob.Run(ctx); runErr != nil {
			jobLogger.Error("Overdue sweep job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Overdue sweep job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule overdue sweep job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled overdue sweep job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func setupLogger(cfg config.LoggerConfig) *slog.Logger {
	return logging.NewLogger(cfg)
}
