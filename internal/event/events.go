package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Envelope fields shared by every ledger event.
type Envelope struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func newEnvelope() Envelope {
	return Envelope{EventID: uuid.NewString(), Timestamp: time.Now().UTC()}
}

type CustomerCreatedEvent struct {
	Envelope
	CustomerID int64  `json:"customerId"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
}

type LoanCreatedEvent struct {
	Envelope
	LoanID     int64  `json:"loanId"`
	CustomerID int64  `json:"customerId"`
	Item       string `json:"itemSold"`
	Amount     string `json:"amount"`
	DueDate    string `json:"dueDate"`
}

type RepaymentRecordedEvent struct {
	Envelope
	LoanID     int64  `json:"loanId"`
	CustomerID int64  `json:"customerId"`
	Requested  string `json:"requested"`
	Accepted   string `json:"accepted"`
	Remaining  string `json:"remaining"`
	PaidOn     string `json:"paidOn"`
	Clamped    bool   `json:"clamped"`
}

type CustomerStatusChangedEvent struct {
	Envelope
	CustomerID         int64  `json:"customerId"`
	OldStatus          string `json:"oldStatus"`
	NewStatus          string `json:"newStatus"`
	OutstandingBalance string `json:"outstandingBalance"`
}

func NewCustomerCreatedEvent(customerID int64, name, email string) CustomerCreatedEvent {
	return CustomerCreatedEvent{Envelope: newEnvelope(), CustomerID: customerID, Name: name, Email: email}
}

func NewLoanCreatedEvent(loanID, customerID int64, item, amount, dueDate string) LoanCreatedEvent {
	return LoanCreatedEvent{
		Envelope:   newEnvelope(),
		LoanID:     loanID,
		CustomerID: customerID,
		Item:       item,
		Amount:     amount,
		DueDate:    dueDate,
	}
}

func NewRepaymentRecordedEvent(loanID, customerID int64, requested, accepted, remaining, paidOn string, clamped bool) RepaymentRecordedEvent {
	return RepaymentRecordedEvent{
		Envelope:   newEnvelope(),
		LoanID:     loanID,
		CustomerID: customerID,
		Requested:  requested,
		Accepted:   accepted,
		Remaining:  remaining,
		PaidOn:     paidOn,
		Clamped:    clamped,
	}
}

func NewCustomerStatusChangedEvent(customerID int64, oldStatus, newStatus, outstanding string) CustomerStatusChangedEvent {
	return CustomerStatusChangedEvent{
		Envelope:           newEnvelope(),
		CustomerID:         customerID,
		OldStatus:          oldStatus,
		NewStatus:          newStatus,
		OutstandingBalance: outstanding,
	}
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger.With("component", "NoopPublisher")}
}

func (p *NoopPublisher) PublishCustomerCreated(ctx context.Context, e CustomerCreatedEvent) error {
	p.logger.DebugContext(ctx, "Event dropped", "routingKey", routingKeyCustomerCreated, "eventId", e.EventID)
	return nil
}

func (p *NoopPublisher) PublishLoanCreated(ctx context.Context, e LoanCreatedEvent) error {
	p.logger.DebugContext(ctx, "Event dropped", "routingKey", routingKeyLoanCreated, "eventId", e.EventID)
	return nil
}

func (p *NoopPublisher) PublishRepaymentRecorded(ctx context.Context, e RepaymentRecordedEvent) error {
	p.logger.DebugContext(ctx, "Event dropped", "routingKey", routingKeyRepaymentRecorded, "eventId", e.EventID)
	return nil
}

func (p *NoopPublisher) PublishCustomerStatusChanged(ctx context.Context, e CustomerStatusChangedEvent) error {
	p.logger.DebugContext(ctx, "Event dropped", "routingKey", routingKeyCustomerStatusChanged, "eventId", e.EventID)
	return nil
}

var _ EventPublisher = (*NoopPublisher)(nil)
