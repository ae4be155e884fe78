package batch

import (
	"context"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/event"
	"credit-ledger/internal/infrastructure/monitoring"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OverdueSweepJob recomputes every customer's status as of the run time. Loans become
// overdue by the calendar alone, so those transitions surface here; transitions caused by
// a mutation are reported by the ledger service and are not published again.
type OverdueSweepJob struct {
	service   ledger.LedgerService
	publisher event.EventPublisher
	now       func() time.Time
	logger    *slog.Logger

	mu sync.Mutex
}

func NewOverdueSweepJob(
	service ledger.LedgerService,
	publisher event.EventPublisher,
	logger *slog.Logger,
) *OverdueSweepJob {
	if service == nil || publisher == nil || logger == nil {
		panic("OverdueSweepJob dependencies cannot be nil")
	}
	return &OverdueSweepJob{
		service:   service,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With("job", "OverdueSweep"),
	}
}

func (j *OverdueSweepJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	startTime := time.Now()
	asOf := j.now()
	j.logger.InfoContext(ctx, "Starting overdue sweep.", slog.Time("as_of", asOf))

	if err := ctx.Err(); err != nil {
		j.logger.WarnContext(ctx, "Overdue sweep cancelled before start.", slog.Any("error", err))
		return err
	}

	summaries, transitions, err := j.service.RefreshStatuses(ctx, asOf)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to refresh customer statuses, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to read ledger: %w", err)
	}

	counts := map[string]int{
		string(ledger.StatusPaidUp):   0,
		string(ledger.StatusUpToDate): 0,
		string(ledger.StatusOverdue):  0,
	}
	outstanding := decimal.Zero
	for _, s := range summaries {
		counts[string(s.Summary.Status)]++
		outstanding = outstanding.Add(s.Summary.OutstandingBalance)
	}

	var errorCount int
	for _, t := range transitions {
		logCtx := j.logger.With(slog.Int64("customerID", t.CustomerID))
		logCtx.InfoContext(ctx, "Customer status changed.",
			slog.String("old_status", string(t.Previous)), slog.String("new_status", string(t.Summary.Status)))
		if err := j.publisher.PublishCustomerStatusChanged(ctx, event.NewCustomerStatusChangedEvent(
			t.CustomerID, string(t.Previous), string(t.Summary.Status), t.Summary.OutstandingBalance.StringFixed(2))); err != nil {
			logCtx.ErrorContext(ctx, "Failed to publish status change", slog.Any("error", err))
			errorCount++
		}
	}

	monitoring.SetCustomerStatusCounts(counts)
	total, _ := outstanding.Float64()
	monitoring.SetOutstandingBalance(total)

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("customers", len(summaries)),
		slog.Int("customers_overdue", counts[string(ledger.StatusOverdue)]),
		slog.Int("customers_up_to_date", counts[string(ledger.StatusUpToDate)]),
		slog.Int("customers_paid_up", counts[string(ledger.StatusPaidUp)]),
		slog.String("outstanding_balance", outstanding.StringFixed(2)),
		slog.Int("status_transitions", len(transitions)),
		slog.Int("errors_encountered", errorCount),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Overdue sweep finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Overdue sweep finished successfully.")
	return nil
}
