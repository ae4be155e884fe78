package sqlite

import (
	"context"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/infrastructure/monitoring"
	"credit-ledger/internal/pkg/apperrors"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite"

// Decimals and dates are stored as TEXT so no precision is lost.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS customers (
	id    INTEGER PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS loans (
	id          INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers (id),
	item_sold   TEXT NOT NULL,
	amount      TEXT NOT NULL,
	due_date    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS repayments (
	loan_id INTEGER NOT NULL REFERENCES loans (id),
	seq     INTEGER NOT NULL,
	amount  TEXT NOT NULL,
	paid_on TEXT NOT NULL,
	PRIMARY KEY (loan_id, seq)
);`

// RecordStore keeps the ledger in a local SQLite file, the on-device analogue of browser storage.
type RecordStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file if needed and makes sure the schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*RecordStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	s := &RecordStore{db: db, logger: logger.With("component", "SQLiteRecordStore", "path", path)}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("SQLite record store ready")
	return s, nil
}

func (s *RecordStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("could not initialize schema: %w", err)
	}
	return nil
}

func (s *RecordStore) Load(ctx context.Context) (ledger.State, bool, error) {
	start := time.Now()
	state, err := s.load(ctx)
	monitoring.RecordStoreOperation(driverName, "load", monitoring.StatusOf(err), time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger", slog.Any("error", err))
		return ledger.State{}, false, err
	}
	return state, len(state.Customers) > 0 || len(state.Loans) > 0, nil
}

func (s *RecordStore) load(ctx context.Context) (ledger.State, error) {
	state := ledger.State{Customers: []ledger.Customer{}, Loans: []ledger.Loan{}}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM customers ORDER BY id`)
	if err != nil {
		return state, apperrors.WrapDatabaseError(err, "failed to query customers")
	}
	for rows.Next() {
		var c ledger.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			rows.Close()
			return state, apperrors.WrapDatabaseError(err, "failed to scan customer")
		}
		state.Customers = append(state.Customers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return state, apperrors.WrapDatabaseError(err, "failed to iterate customers")
	}

	index := map[int64]int{}
	rows, err = s.db.QueryContext(ctx, `SELECT id, customer_id, item_sold, amount, due_date FROM loans ORDER BY id`)
	if err != nil {
		return state, apperrors.WrapDatabaseError(err, "failed to query loans")
	}
	for rows.Next() {
		var (
			l           ledger.Loan
			amount, due string
			parseErr    error
		)
		if err := rows.Scan(&l.ID, &l.CustomerID, &l.Item, &amount, &due); err != nil {
			rows.Close()
			return state, apperrors.WrapDatabaseError(err, "failed to scan loan")
		}
		if l.Principal, parseErr = decimal.NewFromString(amount); parseErr == nil {
			l.DueDate, parseErr = time.Parse(time.DateOnly, due)
		}
		if parseErr != nil {
			rows.Close()
			return state, fmt.Errorf("%w: loan %d: %w", apperrors.ErrCorruptState, l.ID, parseErr)
		}
		l.Repayments = []ledger.Repayment{}
		index[l.ID] = len(state.Loans)
		state.Loans = append(state.Loans, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return state, apperrors.WrapDatabaseError(err, "failed to iterate loans")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT loan_id, amount, paid_on FROM repayments ORDER BY loan_id, seq`)
	if err != nil {
		return state, apperrors.WrapDatabaseError(err, "failed to query repayments")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			loanID       int64
			amount, paid string
		)
		if err := rows.Scan(&loanID, &amount, &paid); err != nil {
			return state, apperrors.WrapDatabaseError(err, "failed to scan repayment")
		}
		i, ok := index[loanID]
		if !ok {
			return state, fmt.Errorf("%w: repayment references unknown loan %d", apperrors.ErrCorruptState, loanID)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return state, fmt.Errorf("%w: loan %d repayment amount: %w", apperrors.ErrCorruptState, loanID, err)
		}
		date, err := time.Parse(time.DateOnly, paid)
		if err != nil {
			return state, fmt.Errorf("%w: loan %d repayment date: %w", apperrors.ErrCorruptState, loanID, err)
		}
		state.Loans[i].Repayments = append(state.Loans[i].Repayments, ledger.Repayment{Amount: value, Date: date})
	}
	if err := rows.Err(); err != nil {
		return state, apperrors.WrapDatabaseError(err, "failed to iterate repayments")
	}
	return state, nil
}

// Save inserts the rows the file does not hold yet; existing rows never change.
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.WrapDatabaseError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, c := range state.Customers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO customers (id, name, email) VALUES (?, ?, ?)`,
			c.ID, c.Name, c.Email); err != nil {
			return apperrors.WrapDatabaseError(err, fmt.Sprintf("failed to insert customer %d", c.ID))
		}
	}
	for _, l := range state.Loans {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO loans (id, customer_id, item_sold, amount, due_date) VALUES (?, ?, ?, ?, ?)`,
			l.ID, l.CustomerID, l.Item, l.Principal.String(), l.DueDate.Format(time.DateOnly)); err != nil {
			return apperrors.WrapDatabaseError(err, fmt.Sprintf("failed to insert loan %d", l.ID))
		}
		for seq, r := range l.Repayments {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO repayments (loan_id, seq, amount, paid_on) VALUES (?, ?, ?, ?)`,
				l.ID, seq, r.Amount.String(), r.Date.Format(time.DateOnly)); err != nil {
				return apperrors.WrapDatabaseError(err, fmt.Sprintf("failed to insert repayment for loan %d", l.ID))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.WrapDatabaseError(err, "failed to commit transaction")
	}
	return nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

var _ ledger.RecordStore = (*RecordStore)(nil)
