package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solcredit/lending-engine/internal/domain"
	"github.com/solcredit/lending-engine/internal/schedule"
	apperrors "github.com/solcredit/lending-engine/pkg/errors"
)

var start = time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)

// beforeFirstDue is an evaluation date with nothing overdue yet.
var beforeFirstDue = time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)

func newTestLoan(t *testing.T, terms domain.LoanTerms) *domain.Loan {
	t.Helper()

	result, err := schedule.Generate(terms)
	require.NoError(t, err)

	loan := &domain.Loan{
		ID:       uuid.New(),
		LoanID:   "LOAN-001",
		Terms:    terms,
		Schedule: result.Installments,
		Status:   domain.LoanStatusActive,
	}
	for _, inst := range loan.Schedule {
		inst.LoanID = loan.LoanID
	}
	return loan
}

func priceLoan(t *testing.T) *domain.Loan {
	return newTestLoan(t, domain.LoanTerms{
		Principal:    decimal.NewFromInt(1500),
		InterestRate: decimal.NewFromFloat(0.10),
		Installments: 3,
		StartDate:    start,
		System:       domain.SystemPrice,
	})
}

func event(loan *domain.Loan, number int, amount string) domain.PaymentEvent {
	return domain.PaymentEvent{
		ID:                uuid.New(),
		LoanID:            loan.LoanID,
		InstallmentNumber: number,
		Amount:            decimal.RequireFromString(amount),
		PaymentDate:       beforeFirstDue,
		Method:            "transfer",
		AccountID:         "ACC-01",
	}
}

func TestApply_FullPayment(t *testing.T) {
	loan := priceLoan(t)
	first := loan.Schedule[0]

	result, err := Apply(loan, event(loan, 1, first.Amount.String()), beforeFirstDue)
	require.NoError(t, err)

	assert.Equal(t, domain.InstallmentStatusPaid, first.Status)
	assert.True(t, first.PaidAmount.Equal(first.Amount))
	assert.True(t, result.Remainder.IsZero())
	assert.Equal(t, domain.LoanStatusActive, result.LoanStatus)
	assert.Len(t, loan.Payments, 1)
}

func TestApply_PartialPayment(t *testing.T) {
	loan := priceLoan(t)
	first := loan.Schedule[0]
	half := first.Amount.Div(decimal.NewFromInt(2)).Round(2)

	result, err := Apply(loan, event(loan, 1, half.String()), beforeFirstDue)
	require.NoError(t, err)

	assert.Equal(t, domain.InstallmentStatusPartiallyPaid, first.Status)
	assert.True(t, first.PaidAmount.Equal(half))
	assert.True(t, first.Remaining().Equal(first.Amount.Sub(half)))
	assert.True(t, result.Applied.Equal(half))
	assert.True(t, result.Remainder.IsZero())
}

func TestApply_Overpayment(t *testing.T) {
	loan := priceLoan(t)
	first := loan.Schedule[0]
	excess := decimal.NewFromInt(100)

	result, err := Apply(loan, event(loan, 1, first.Amount.Add(excess).String()), beforeFirstDue)
	require.NoError(t, err)

	// The installment never holds more than its amount; the excess comes
	// back for the caller to route.
	assert.True(t, first.PaidAmount.Equal(first.Amount))
	assert.Equal(t, domain.InstallmentStatusPaid, first.Status)
	assert.True(t, result.Applied.Equal(first.Amount))
	assert.True(t, result.Remainder.Equal(excess))
}

func TestApply_AlreadySettled(t *testing.T) {
	loan := priceLoan(t)
	first := loan.Schedule[0]

	_, err := Apply(loan, event(loan, 1, first.Amount.String()), beforeFirstDue)
	require.NoError(t, err)

	before := first.PaidAmount
	_, err = Apply(loan, event(loan, 1, "10"), beforeFirstDue)
	assert.ErrorIs(t, err, apperrors.ErrAlreadySettled)
	assert.True(t, first.PaidAmount.Equal(before))
	assert.Len(t, loan.Payments, 1)
}

func TestApply_DuplicateEvent(t *testing.T) {
	loan := priceLoan(t)
	ev := event(loan, 1, "100")

	_, err := Apply(loan, ev, beforeFirstDue)
	require.NoError(t, err)

	paidAfterFirst := loan.Schedule[0].PaidAmount
	_, err = Apply(loan, ev, beforeFirstDue)
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePayment)
	assert.True(t, loan.Schedule[0].PaidAmount.Equal(paidAfterFirst),
		"replay must not double-apply")
	assert.Len(t, loan.Payments, 1)
}

func TestApply_InvalidAmount(t *testing.T) {
	loan := priceLoan(t)

	for _, amount := range []string{"0", "-50"} {
		_, err := Apply(loan, event(loan, 1, amount), beforeFirstDue)
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	}
	assert.Empty(t, loan.Payments)
	assert.Equal(t, domain.InstallmentStatusPending, loan.Schedule[0].Status)
}

func TestApply_InstallmentNotFound(t *testing.T) {
	loan := priceLoan(t)

	_, err := Apply(loan, event(loan, 9, "100"), beforeFirstDue)
	assert.ErrorIs(t, err, apperrors.ErrInstallmentNotFound)
	assert.Empty(t, loan.Payments)
}

func TestApply_StatusNeverRegresses(t *testing.T) {
	loan := priceLoan(t)
	first := loan.Schedule[0]

	_, err := Apply(loan, event(loan, 1, "100"), beforeFirstDue)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusPartiallyPaid, first.Status)

	_, err = Apply(loan, event(loan, 1, "100"), beforeFirstDue)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusPartiallyPaid, first.Status)

	_, err = Apply(loan, event(loan, 1, first.Remaining().String()), beforeFirstDue)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusPaid, first.Status)
	assert.True(t, first.PaidAmount.Equal(first.Amount))
}

func TestLoanStatus(t *testing.T) {
	t.Run("active while nothing is due", func(t *testing.T) {
		loan := priceLoan(t)
		assert.Equal(t, domain.LoanStatusActive, LoanStatus(loan, beforeFirstDue))
	})

	t.Run("still active at mid-day on the first due date", func(t *testing.T) {
		loan := priceLoan(t)
		noonOnDueDate := time.Date(2025, 12, 8, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, domain.LoanStatusActive, LoanStatus(loan, noonOnDueDate))
	})

	t.Run("overdue once a pending installment is past due", func(t *testing.T) {
		loan := priceLoan(t)
		afterFirstDue := time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, domain.LoanStatusOverdue, LoanStatus(loan, afterFirstDue))
	})

	t.Run("settled when the whole schedule is paid", func(t *testing.T) {
		loan := priceLoan(t)
		for _, inst := range loan.Schedule {
			_, err := Apply(loan, event(loan, inst.Number, inst.Amount.String()), beforeFirstDue)
			require.NoError(t, err)
		}
		assert.Equal(t, domain.LoanStatusSettled, LoanStatus(loan, beforeFirstDue))
	})

	t.Run("paid with an out-of-band fee still open", func(t *testing.T) {
		loan := newTestLoan(t, domain.LoanTerms{
			Principal:    decimal.NewFromInt(1000),
			Installments: 2,
			StartDate:    start,
			FeeRate:      decimal.NewFromFloat(0.05),
			FeeHandling:  domain.FeeOutOfBand,
		})
		for _, inst := range loan.Schedule {
			_, err := Apply(loan, event(loan, inst.Number, inst.Amount.String()), beforeFirstDue)
			require.NoError(t, err)
		}
		assert.Equal(t, domain.LoanStatusPaid, LoanStatus(loan, beforeFirstDue))
	})
}

func TestOutstanding(t *testing.T) {
	loan := priceLoan(t)

	total := decimal.Zero
	for _, inst := range loan.Schedule {
		total = total.Add(inst.Amount)
	}
	assert.True(t, Outstanding(loan).Equal(total))

	_, err := Apply(loan, event(loan, 1, "203.17"), beforeFirstDue)
	require.NoError(t, err)
	assert.True(t, Outstanding(loan).Equal(total.Sub(decimal.RequireFromString("203.17"))))
}

func TestIsDelinquent(t *testing.T) {
	loan := priceLoan(t)

	t.Run("nothing missed before the first due date", func(t *testing.T) {
		delinquent, missed := IsDelinquent(loan, beforeFirstDue, 2)
		assert.False(t, delinquent)
		assert.Equal(t, 0, missed)
	})

	t.Run("two consecutive missed installments", func(t *testing.T) {
		afterSecondDue := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
		delinquent, missed := IsDelinquent(loan, afterSecondDue, 2)
		assert.True(t, delinquent)
		assert.Equal(t, 2, missed)
	})

	t.Run("a paid installment resets the run", func(t *testing.T) {
		paid := priceLoan(t)
		_, err := Apply(paid, event(paid, 2, paid.Schedule[1].Amount.String()), beforeFirstDue)
		require.NoError(t, err)

		afterAllDue := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
		delinquent, missed := IsDelinquent(paid, afterAllDue, 2)
		assert.False(t, delinquent)
		assert.Equal(t, 1, missed)
	})
}
