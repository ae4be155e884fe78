package postgres

import (
	"context"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/infrastructure/monitoring"
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ ledger.RecordStore = (*RecordStore)(nil)

var errMsgFormat = "%w: %w"

const driverName = "postgres"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS customers (
	id    BIGINT PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS loans (
	id          BIGINT PRIMARY KEY,
	customer_id BIGINT NOT NULL REFERENCES customers (id),
	item_sold   TEXT NOT NULL,
	amount      NUMERIC NOT NULL CHECK (amount > 0),
	due_date    DATE NOT NULL
);
CREATE TABLE IF NOT EXISTS repayments (
	loan_id BIGINT NOT NULL REFERENCES loans (id),
	seq     INTEGER NOT NULL,
	amount  NUMERIC NOT NULL CHECK (amount > 0),
	paid_on DATE NOT NULL,
	PRIMARY KEY (loan_id, seq)
);`

const (
	selectCustomersSQL  = `SELECT id, name, email FROM customers ORDER BY id`
	selectLoansSQL      = `SELECT id, customer_id, item_sold, amount::text, due_date FROM loans ORDER BY id`
	selectRepaymentsSQL = `SELECT loan_id, amount::text, paid_on FROM repayments ORDER BY loan_id, seq`

	insertCustomerSQL  = `INSERT INTO customers (id, name, email) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	insertLoanSQL      = `INSERT INTO loans (id, customer_id, item_sold, amount, due_date) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
	insertRepaymentSQL = `INSERT INTO repayments (loan_id, seq, amount, paid_on) VALUES ($1, $2, $3, $4) ON CONFLICT (loan_id, seq) DO NOTHING`
)

// RecordStore keeps the ledger in three tables. Customers, loans and repayments are never
// updated or deleted, so Save only inserts rows that are not there yet.
type RecordStore struct {
	db     DBPool
	logger *slog.Logger
}

func NewRecordStore(db DBPool, logger *slog.Logger) *RecordStore {
	return &RecordStore{db: db, logger: logger.With("component", "PostgresRecordStore")}
}

func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create ledger schema", slog.Any("error", err))
		return translateDBError(err, s.logger)
	}
	s.logger.InfoContext(ctx, "Ledger schema ready")
	return nil
}

func (s *RecordStore) Load(ctx context.Context) (ledger.State, bool, error) {
	start := time.Now()
	state, err := s.load(ctx)
	monitoring.RecordStoreOperation(driverName, "load", monitoring.StatusOf(err), time.Since(start))
	if err != nil {
		return ledger.State{}, false, err
	}
	found := len(state.Customers) > 0 || len(state.Loans) > 0
	s.logger.DebugContext(ctx, "Loaded ledger", slog.Bool("found", found),
		slog.Int("customers", len(state.Customers)), slog.Int("loans", len(state.Loans)))
	return state, found, nil
}

func (s *RecordStore) load(ctx context.Context) (ledger.State, error) {
	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return ledger.State{}, err
	}
	loans, err := s.loadLoans(ctx)
	if err != nil {
		return ledger.State{}, err
	}
	if err := s.attachRepayments(ctx, loans); err != nil {
		return ledger.State{}, err
	}
	return ledger.State{Customers: customers, Loans: loans}, nil
}

func (s *RecordStore) loadCustomers(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := s.db.Query(ctx, selectCustomersSQL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
		return nil, translateDBError(err, s.logger)
	}
	defer rows.Close()

	customers := make([]ledger.Customer, 0)
	for rows.Next() {
		var c ledger.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, fmt.Errorf("%w: failed scanning customer: %w", apperrors.ErrDatabase, err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating customers: %w", apperrors.ErrDatabase, err)
	}
	return customers, nil
}

func (s *RecordStore) loadLoans(ctx context.Context) ([]ledger.Loan, error) {
	rows, err := s.db.Query(ctx, selectLoansSQL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query loans", slog.Any("error", err))
		return nil, translateDBError(err, s.logger)
	}
	defer rows.Close()

	loans := make([]ledger.Loan, 0)
	for rows.Next() {
		var (
			l      ledger.Loan
			amount string
		)
		if err := rows.Scan(&l.ID, &l.CustomerID, &l.Item, &amount, &l.DueDate); err != nil {
			return nil, fmt.Errorf("%w: failed scanning loan: %w", apperrors.ErrDatabase, err)
		}
		if l.Principal, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("%w: loan %d has invalid amount %q: %w", apperrors.ErrCorruptState, l.ID, amount, err)
		}
		l.DueDate = ledger.CalendarDate(l.DueDate)
		l.Repayments = []ledger.Repayment{}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating loans: %w", apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func (s *RecordStore) attachRepayments(ctx context.Context, loans []ledger.Loan) error {
	index := make(map[int64]int, len(loans))
	for i, l := range loans {
		index[l.ID] = i
	}

	rows, err := s.db.Query(ctx, selectRepaymentsSQL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query repayments", slog.Any("error", err))
		return translateDBError(err, s.logger)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			loanID int64
			amount string
			paidOn time.Time
		)
		if err := rows.Scan(&loanID, &amount, &paidOn); err != nil {
			return fmt.Errorf("%w: failed scanning repayment: %w", apperrors.ErrDatabase, err)
		}
		i, ok := index[loanID]
		if !ok {
			return fmt.Errorf("%w: repayment references unknown loan %d", apperrors.ErrCorruptState, loanID)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("%w: loan %d has invalid repayment %q: %w", apperrors.ErrCorruptState, loanID, amount, err)
		}
		loans[i].Repayments = append(loans[i].Repayments, ledger.Repayment{Amount: value, Date: ledger.CalendarDate(paidOn)})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: error iterating repayments: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func (s *RecordStore) Save(ctx context.Context, state ledger.State) error {
	start := time.Now()
	err := s.save(ctx, state)
	monitoring.RecordStoreOperation(driverName, "save", monitoring.StatusOf(err), time.Since(start))
	return err
}

func (s *RecordStore) save(ctx context.Context, state ledger.State) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if err := s.insertAll(ctx, tx, state); err != nil {
		s.rollback(ctx, tx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (s *RecordStore) insertAll(ctx context.Context, tx pgx.Tx, state ledger.State) error {
	for _, c := range state.Customers {
		if _, err := tx.Exec(ctx, insertCustomerSQL, c.ID, c.Name, c.Email); err != nil {
			s.logger.ErrorContext(ctx, "Failed to insert customer", slog.Int64("customerID", c.ID), slog.Any("error", err))
			return translateDBError(err, s.logger)
		}
	}
	for _, l := range state.Loans {
		if _, err := tx.Exec(ctx, insertLoanSQL, l.ID, l.CustomerID, l.Item, l.Principal.String(), l.DueDate); err != nil {
			s.logger.ErrorContext(ctx, "Failed to insert loan", slog.Int64("loanID", l.ID), slog.Any("error", err))
			return translateDBError(err, s.logger)
		}
		for seq, r := range l.Repayments {
			if _, err := tx.Exec(ctx, insertRepaymentSQL, l.ID, seq, r.Amount.String(), r.Date); err != nil {
				s.logger.ErrorContext(ctx, "Failed to insert repayment", slog.Int64("loanID", l.ID), slog.Any("error", err))
				return translateDBError(err, s.logger)
			}
		}
	}
	return nil
}

func (s *RecordStore) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
}

func (s *RecordStore) Close() error {
	s.logger.Info("Closing database connection pool...")
	s.db.Close()
	return nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
