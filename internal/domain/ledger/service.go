package ledger

import (
	"context"
	"credit-ledger/internal/event"
	"credit-ledger/internal/infrastructure/monitoring"
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LedgerService interface {
	AddCustomer(ctx context.Context, name, email string) (Customer, error)
	AddLoan(ctx context.Context, customerID int64, item string, amount decimal.Decimal, dueDate time.Time) (Loan, error)
	RecordRepayment(ctx context.Context, loanID int64, amount decimal.Decimal, date time.Time) (RepaymentReceipt, error)
	GetCustomer(ctx context.Context, customerID int64) (Customer, error)
	GetLoan(ctx context.Context, loanID int64) (Loan, error)
	ListCustomerSummaries(ctx context.Context, asOf time.Time) ([]CustomerSummary, error)
	GetCustomerDetail(ctx context.Context, customerID int64, asOf time.Time) (CustomerDetail, error)
	Snapshot(ctx context.Context) (State, error)
	RefreshStatuses(ctx context.Context, asOf time.Time) ([]CustomerSummary, []StatusTransition, error)
}

// StatusTransition is a change in a customer's derived status since the service last observed it.
type StatusTransition struct {
	CustomerID int64
	Previous   CustomerStatus
	Summary    StatusSummary
}

const (
	opAddCustomer     = "add_customer"
	opAddLoan         = "add_loan"
	opRecordRepayment = "record_repayment"
)

type ledgerServiceImpl struct {
	// mu serializes every read-modify-save cycle so no two mutations observe the same state.
	mu    sync.RWMutex
	state State

	// statuses holds the last observed status per customer, shared by mutations and RefreshStatuses
	// so each transition is reported once. Guarded by mu.
	statuses map[int64]CustomerStatus

	store     RecordStore
	publisher event.EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewLedgerService loads the ledger from store, seeding and saving the default dataset
// when the store is empty.
func NewLedgerService(ctx context.Context, store RecordStore, publisher event.EventPublisher, logger *slog.Logger) (LedgerService, error) {
	if store == nil {
		panic("record store cannot be nil")
	}
	if publisher == nil {
		panic("event publisher cannot be nil")
	}
	s := &ledgerServiceImpl{
		statuses:  map[int64]CustomerStatus{},
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With("component", "LedgerService"),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ledgerServiceImpl) load(ctx context.Context) error {
	state, found, err := s.store.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger from store", slog.Any("error", err))
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	if !found {
		state = SeedState()
		s.logger.InfoContext(ctx, "No saved ledger found, starting from seed data",
			slog.Int("customers", len(state.Customers)), slog.Int("loans", len(state.Loans)))
		if err := s.store.Save(ctx, state); err != nil {
			s.logger.ErrorContext(ctx, "Failed to save seed ledger", slog.Any("error", err))
			return fmt.Errorf("failed to save seed ledger: %w", err)
		}
	} else if err := state.Validate(); err != nil {
		s.logger.ErrorContext(ctx, "Stored ledger failed validation", slog.Any("error", err))
		return err
	}

	s.state = state
	asOf := s.now()
	for _, c := range state.Customers {
		s.observeStatus(c.ID, asOf)
	}
	s.logger.InfoContext(ctx, "Ledger loaded", slog.Int("customers", len(state.Customers)), slog.Int("loans", len(state.Loans)))
	return nil
}

// mutate applies update to the current state, persists the result and only then makes it current.
// update returns the customer whose status the change may affect.
func (s *ledgerServiceImpl) mutate(ctx context.Context, op string, update func(State) (State, int64, error)) (State, *StatusTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state
	after, customerID, err := update(before)
	if err != nil {
		monitoring.RecordLedgerOperation(op, "rejected")
		return before, nil, err
	}

	if err := s.store.Save(ctx, after); err != nil {
		monitoring.RecordLedgerOperation(op, "error")
		s.logger.ErrorContext(ctx, "Failed to persist ledger", slog.String("operation", op), slog.Any("error", err))
		return before, nil, fmt.Errorf("failed to persist ledger: %w", err)
	}

	s.state = after
	monitoring.RecordLedgerOperation(op, "success")
	if t, changed := s.observeStatus(customerID, s.now()); changed {
		return after, &t, nil
	}
	return after, nil, nil
}

// observeStatus records the customer's current status. Callers hold mu for writing.
func (s *ledgerServiceImpl) observeStatus(customerID int64, asOf time.Time) (StatusTransition, bool) {
	summary := SummarizeCustomer(s.state.LoansFor(customerID), asOf)
	previous, seen := s.statuses[customerID]
	s.statuses[customerID] = summary.Status
	if !seen || previous == summary.Status {
		return StatusTransition{}, false
	}
	return StatusTransition{CustomerID: customerID, Previous: previous, Summary: summary}, true
}

func (s *ledgerServiceImpl) AddCustomer(ctx context.Context, name, email string) (Customer, error) {
	var created Customer
	_, _, err := s.mutate(ctx, opAddCustomer, func(st State) (State, int64, error) {
		next, c, err := st.AddCustomer(name, email)
		created = c
		return next, c.ID, err
	})
	if err != nil {
		s.logRejection(ctx, opAddCustomer, err)
		return Customer{}, err
	}

	s.logger.InfoContext(ctx, "Customer added", slog.Int64("customerID", created.ID))
	s.publish(ctx, "customer.created", func() error {
		return s.publisher.PublishCustomerCreated(ctx, event.NewCustomerCreatedEvent(created.ID, created.Name, created.Email))
	})
	return created, nil
}

func (s *ledgerServiceImpl) AddLoan(ctx context.Context, customerID int64, item string, amount decimal.Decimal, dueDate time.Time) (Loan, error) {
	var created Loan
	_, transition, err := s.mutate(ctx, opAddLoan, func(st State) (State, int64, error) {
		next, l, err := st.AddLoan(customerID, item, amount, dueDate)
		created = l
		return next, customerID, err
	})
	if err != nil {
		s.logRejection(ctx, opAddLoan, err, slog.Int64("customerID", customerID))
		return Loan{}, err
	}

	s.logger.InfoContext(ctx, "Loan added",
		slog.Int64("loanID", created.ID), slog.Int64("customerID", customerID), slog.String("amount", created.Principal.StringFixed(2)))
	s.publish(ctx, "loan.created", func() error {
		return s.publisher.PublishLoanCreated(ctx, event.NewLoanCreatedEvent(
			created.ID, created.CustomerID, created.Item, created.Principal.StringFixed(2), created.DueDate.Format(time.DateOnly)))
	})
	s.publishStatusChange(ctx, transition)
	return created, nil
}

func (s *ledgerServiceImpl) RecordRepayment(ctx context.Context, loanID int64, amount decimal.Decimal, date time.Time) (RepaymentReceipt, error) {
	var receipt RepaymentReceipt
	after, transition, err := s.mutate(ctx, opRecordRepayment, func(st State) (State, int64, error) {
		next, r, err := st.RecordRepayment(loanID, amount, date)
		receipt = r
		loan, _ := next.FindLoan(loanID)
		return next, loan.CustomerID, err
	})
	if err != nil {
		s.logRejection(ctx, opRecordRepayment, err, slog.Int64("loanID", loanID))
		return RepaymentReceipt{}, err
	}

	loan, _ := after.FindLoan(loanID)
	logCtx := s.logger.With(slog.Int64("loanID", loanID), slog.Int64("customerID", loan.CustomerID))
	if receipt.Clamped() {
		monitoring.RecordClampedRepayment()
		logCtx.WarnContext(ctx, "Repayment exceeded remaining balance and was reduced",
			slog.String("requested", receipt.Requested.StringFixed(2)), slog.String("accepted", receipt.Accepted.StringFixed(2)))
	}
	logCtx.InfoContext(ctx, "Repayment recorded",
		slog.String("accepted", receipt.Accepted.StringFixed(2)), slog.String("remaining", receipt.Remaining.StringFixed(2)))

	s.publish(ctx, "loan.repayment_recorded", func() error {
		return s.publisher.PublishRepaymentRecorded(ctx, event.NewRepaymentRecordedEvent(
			loanID, loan.CustomerID,
			receipt.Requested.StringFixed(2), receipt.Accepted.StringFixed(2), receipt.Remaining.StringFixed(2),
			receipt.Date.Format(time.DateOnly), receipt.Clamped()))
	})
	s.publishStatusChange(ctx, transition)
	return receipt, nil
}

func (s *ledgerServiceImpl) GetCustomer(ctx context.Context, customerID int64) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FindCustomer(customerID)
}

func (s *ledgerServiceImpl) GetLoan(ctx context.Context, loanID int64) (Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FindLoan(loanID)
}

func (s *ledgerServiceImpl) ListCustomerSummaries(ctx context.Context, asOf time.Time) ([]CustomerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Dashboard(s.state, asOf), nil
}

func (s *ledgerServiceImpl) GetCustomerDetail(ctx context.Context, customerID int64, asOf time.Time) (CustomerDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Detail(s.state, customerID, asOf)
}

// Snapshot returns the current state. Callers must treat it as read-only.
func (s *ledgerServiceImpl) Snapshot(ctx context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

// RefreshStatuses recomputes every customer's status as of asOf. Transitions already reported
// by a mutation are not returned again.
func (s *ledgerServiceImpl) RefreshStatuses(ctx context.Context, asOf time.Time) ([]CustomerSummary, []StatusTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]CustomerSummary, 0, len(s.state.Customers))
	var transitions []StatusTransition
	for _, c := range s.state.Customers {
		if t, changed := s.observeStatus(c.ID, asOf); changed {
			transitions = append(transitions, t)
		}
		summaries = append(summaries, CustomerSummary{Customer: c, Summary: SummarizeCustomer(s.state.LoansFor(c.ID), asOf)})
	}
	return summaries, transitions, nil
}

func (s *ledgerServiceImpl) publishStatusChange(ctx context.Context, t *StatusTransition) {
	if t == nil {
		return
	}
	s.logger.InfoContext(ctx, "Customer status changed", slog.Int64("customerID", t.CustomerID),
		slog.String("old_status", string(t.Previous)), slog.String("new_status", string(t.Summary.Status)))
	s.publish(ctx, "customer.status_changed", func() error {
		return s.publisher.PublishCustomerStatusChanged(ctx, event.NewCustomerStatusChangedEvent(
			t.CustomerID, string(t.Previous), string(t.Summary.Status), t.Summary.OutstandingBalance.StringFixed(2)))
	})
}

// publish never fails the mutation; the ledger is already saved.
func (s *ledgerServiceImpl) publish(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event", slog.String("event", name), slog.Any("error", err))
	}
}

func (s *ledgerServiceImpl) logRejection(ctx context.Context, op string, err error, attrs ...any) {
	level := slog.LevelError
	if errors.Is(err, apperrors.ErrValidation) || errors.Is(err, apperrors.ErrNotFound) {
		level = slog.LevelWarn
	}
	args := append([]any{slog.String("operation", op), slog.Any("error", err)}, attrs...)
	s.logger.Log(ctx, level, "Ledger operation rejected", args...)
}
