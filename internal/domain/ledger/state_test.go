package ledger

import (
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedStateIsValid(t *testing.T) {
	s := SeedState()

	require.NoError(t, s.Validate())
	assert.Len(t, s.Customers, 10)
	assert.Len(t, s.Loans, 13)

	paidUp, err := s.FindLoan(301)
	require.NoError(t, err)
	assert.True(t, RemainingBalance(paidUp).IsZero())
}

func TestStateAddCustomer(t *testing.T) {
	s := SeedState()

	next, c, err := s.AddCustomer("Meera Nair", "meera@shop.com")
	require.NoError(t, err)

	assert.Equal(t, int64(11), c.ID)
	assert.Len(t, next.Customers, 11)
	assert.Len(t, s.Customers, 10, "receiver must not change")

	_, _, err = s.AddCustomer("", "")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestStateAddLoan(t *testing.T) {
	s := SeedState()

	next, loan, err := s.AddLoan(3, "Rice", dec("450"), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1002), loan.ID)
	assert.Len(t, next.LoansFor(3), 2)
	assert.Len(t, s.LoansFor(3), 1)

	_, _, err = s.AddLoan(99, "Rice", dec("450"), time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestStateRecordRepayment(t *testing.T) {
	s := SeedState()

	next, receipt, err := s.RecordRepayment(101, dec("200"), today)
	require.NoError(t, err)
	assert.True(t, receipt.Remaining.Equal(dec("800")))

	updated, _ := next.FindLoan(101)
	original, _ := s.FindLoan(101)
	assert.Len(t, updated.Repayments, 2)
	assert.Len(t, original.Repayments, 1)

	_, _, err = s.RecordRepayment(999, dec("1"), today)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, _, err = s.RecordRepayment(301, dec("1"), today)
	assert.True(t, errors.Is(err, apperrors.ErrLoanFullyPaid))
}

func TestStateValidate(t *testing.T) {
	t.Run("orphan loan", func(t *testing.T) {
		s := State{Loans: []Loan{loanWith("10", yesterday)}}
		assert.True(t, errors.Is(s.Validate(), apperrors.ErrCorruptState))
	})

	t.Run("over-repaid loan", func(t *testing.T) {
		s := State{Customers: []Customer{{ID: 1, Name: "A"}}, Loans: []Loan{loanWith("10", yesterday, "11")}}
		assert.True(t, errors.Is(s.Validate(), apperrors.ErrCorruptState))
	})

	t.Run("duplicate customer", func(t *testing.T) {
		s := State{Customers: []Customer{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}}
		assert.True(t, errors.Is(s.Validate(), apperrors.ErrCorruptState))
	})

	t.Run("empty ledger", func(t *testing.T) {
		assert.NoError(t, State{}.Validate())
	})
}

func TestDetailSortsByDueDateDescending(t *testing.T) {
	s := SeedState()

	detail, err := Detail(s, 1, today)
	require.NoError(t, err)
	require.Len(t, detail.Loans, 2)
	assert.Equal(t, int64(102), detail.Loans[0].Loan.ID)
	assert.Equal(t, int64(101), detail.Loans[1].Loan.ID)
	assert.True(t, detail.Loans[1].Overdue)
	assert.True(t, detail.Loans[1].Remaining.Equal(dec("1000")))
	assert.Equal(t, StatusOverdue, detail.Summary.Status)

	_, err = Detail(s, 42, today)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestDashboardAsOf(t *testing.T) {
	asOf := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	summaries := Dashboard(SeedState(), asOf)
	require.Len(t, summaries, 10)

	byID := map[int64]StatusSummary{}
	for _, cs := range summaries {
		byID[cs.Customer.ID] = cs.Summary
	}
	assert.Equal(t, StatusOverdue, byID[2].Status)
	assert.Equal(t, StatusPaidUp, byID[3].Status)
	assert.Equal(t, StatusUpToDate, byID[4].Status)
	assert.True(t, byID[5].OutstandingBalance.Equal(dec("2200")))
}
