package main

import (
	"context"
	"credit-ledger/internal/batch"
	"credit-ledger/internal/config"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/event"
	"credit-ledger/internal/infrastructure/database/sqlite"
	"credit-ledger/internal/infrastructure/logging"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeApp(t *testing.T) {
	t.Setenv("SERVER_AUTH_JWTSECRET", "test-secret")

	cfg, log := initializeApp()

	assert.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
	assert.Equal(t, "test-secret", cfg.Server.Auth.JWTSecret)
}

func TestValidateAuth(t *testing.T) {
	assert.Error(t, validateAuth(config.AuthConfig{Enabled: true}))
	assert.NoError(t, validateAuth(config.AuthConfig{Enabled: true, JWTSecret: "s"}))
	assert.NoError(t, validateAuth(config.AuthConfig{Enabled: false}))
}

func TestOpenStore(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{Level: "error"})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Driver: "mongo"}}
		store, err := openStore(context.Background(), cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("sqlite file is seeded on first load", func(t *testing.T) {
		cfg := &config.Config{
			Store:  config.StoreConfig{Driver: "sqlite"},
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
		}
		store, err := openStore(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.IsType(t, &sqlite.RecordStore{}, store)

		svc, err := ledger.NewLedgerService(context.Background(), store, event.NewNoopPublisher(logger), logger)
		require.NoError(t, err)
		snapshot, err := svc.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Len(t, snapshot.Customers, 10)

		_, found, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.True(t, found, "seed should be written back")
		require.NoError(t, store.Close())
	})
}

func TestRabbitMQURL(t *testing.T) {
	cfg := config.RabbitMQConfig{Host: "mq", Port: 5672, Username: "guest", Password: "secret"}
	assert.Equal(t, "amqp://guest:secret@mq:5672/", rabbitMQURL(cfg))
}

func TestInitializePublisherDisabled(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{Level: "error"})

	publisher, conn := initializePublisher(&config.Config{}, logger)

	assert.IsType(t, &event.NoopPublisher{}, publisher)
	assert.Nil(t, conn)
}

func TestStartBatchJobs(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{Level: "error"})
	cfg := &config.Config{Batch: config.BatchConfig{OverdueSweepSchedule: "*/5 * * * *", OverdueSweepTimeout: 10}}
	svc, err := ledger.NewLedgerService(context.Background(), &memoryStore{}, event.NewNoopPublisher(logger), logger)
	require.NoError(t, err)

	c := startBatchJobs(cfg, logger, batch.NewOverdueSweepJob(svc, event.NewNoopPublisher(logger), logger))
	defer c.Stop()

	assert.Len(t, c.Entries(), 1)
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0},
	}
	logger := logging.NewLogger(config.LoggerConfig{})
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	defer srv.Close()

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
}

func TestHandleShutdown(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cronScheduler := cron.New()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	go func() {
		shutdownChan <- syscall.SIGINT
	}()

	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
	assert.True(t, true, "Graceful shutdown should complete without errors")
}

type memoryStore struct {
	state ledger.State
	saved bool
}

func (m *memoryStore) Load(ctx context.Context) (ledger.State, bool, error) {
	return m.state, m.saved, nil
}

func (m *memoryStore) Save(ctx context.Context, s ledger.State) error {
	m.state, m.saved = s, true
	return nil
}

func (m *memoryStore) Close() error { return nil }
