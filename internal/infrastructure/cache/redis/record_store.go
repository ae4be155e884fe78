package redis

import (
	"context"
	"credit-ledger/internal/config"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/infrastructure/monitoring"
	"credit-ledger/internal/pkg/apperrors"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const driverName = "redis"

// Client is the subset of *redis.Client the store needs.
type Client interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Close() error
}

var _ Client = (*redis.Client)(nil)

// RecordStore keeps the ledger as two JSON documents, one per collection, the way the
// browser build kept them under two storage keys.
type RecordStore struct {
	client       Client
	customersKey string
	loansKey     string
	logger       *slog.Logger
}

func NewClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info("Connecting to Redis...", "addr", cfg.Addr, "db", cfg.DB)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewRecordStore(client Client, keyPrefix string, logger *slog.Logger) *RecordStore {
	if keyPrefix == "" {
		keyPrefix = "crediKhaata"
	}
	return &RecordStore{
		client:       client,
		customersKey: keyPrefix + ":customers",
		loansKey:     keyPrefix + ":loans",
		logger:       logger.With("component", "RedisRecordStore"),
	}
}

func (s *RecordStore) Load(ctx context.Context) (ledger.State, bool, error) {
	start := time.Now()
	state, found, err := s.load(ctx)
	monitoring.RecordStoreOperation(driverName, "load", monitoring.StatusOf(err), time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger", slog.Any("error", err))
		return ledger.State{}, false, err
	}
	return state, found, nil
}

func (s *RecordStore) load(ctx context.Context) (ledger.State, bool, error) {
	values, err := s.client.MGet(ctx, s.customersKey, s.loansKey).Result()
	if err != nil {
		return ledger.State{}, false, apperrors.WrapDatabaseError(err, "failed to read ledger keys")
	}
	if len(values) != 2 {
		return ledger.State{}, false, fmt.Errorf("%w: expected 2 values from MGET, got %d", apperrors.ErrDatabase, len(values))
	}
	// Either key present counts as a saved ledger; a missing half decodes as empty.
	if values[0] == nil && values[1] == nil {
		return ledger.State{}, false, nil
	}

	state, err := decodeState(values[0], values[1])
	if err != nil {
		return ledger.State{}, false, err
	}
	return state, true, nil
}

func (s *RecordStore) Save(ctx context.Context, state ledger.State) error {
	start := time.Now()
	err := s.save(ctx, state)
	monitoring.RecordStoreOperation(driverName, "save", monitoring.StatusOf(err), time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save ledger", slog.Any("error", err))
	}
	return err
}

func (s *RecordStore) save(ctx context.Context, state ledger.State) error {
	customers, loans, err := encodeState(state)
	if err != nil {
		return err
	}
	// MULTI/EXEC so a reader never sees new loans next to stale customers.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.customersKey, customers, 0)
		pipe.Set(ctx, s.loansKey, loans, 0)
		return nil
	})
	if err != nil {
		return apperrors.WrapDatabaseError(err, "failed to write ledger keys")
	}
	return nil
}

func (s *RecordStore) Close() error {
	return s.client.Close()
}

func encodeState(state ledger.State) ([]byte, []byte, error) {
	customers := state.Customers
	if customers == nil {
		customers = []ledger.Customer{}
	}
	loans := state.Loans
	if loans == nil {
		loans = []ledger.Loan{}
	}
	c, err := json.Marshal(customers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode customers: %w", err)
	}
	l, err := json.Marshal(loans)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode loans: %w", err)
	}
	return c, l, nil
}

func decodeState(customersRaw, loansRaw interface{}) (ledger.State, error) {
	state := ledger.State{Customers: []ledger.Customer{}, Loans: []ledger.Loan{}}
	if err := decodeValue(customersRaw, &state.Customers); err != nil {
		return ledger.State{}, fmt.Errorf("%w: customers: %w", apperrors.ErrCorruptState, err)
	}
	if err := decodeValue(loansRaw, &state.Loans); err != nil {
		return ledger.State{}, fmt.Errorf("%w: loans: %w", apperrors.ErrCorruptState, err)
	}
	return state, nil
}

func decodeValue(raw interface{}, v interface{}) error {
	switch data := raw.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(data), v)
	case []byte:
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("unexpected value type %T", raw)
	}
}

var _ ledger.RecordStore = (*RecordStore)(nil)
