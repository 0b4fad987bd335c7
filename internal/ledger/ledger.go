// Package ledger applies payment events to a loan's installment schedule
// and derives loan-level status. It holds no locks and performs no I/O;
// callers serialize concurrent applications per loan (the repository layer
// does this with a version check).
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/domain"
	apperrors "github.com/solcredit/lending-engine/pkg/errors"
)

// Result is the outcome of a successful payment application.
type Result struct {
	Installment *domain.Installment
	// Applied is the portion of the event amount credited to the
	// installment, capped at what was still due.
	Applied decimal.Decimal
	// Remainder is the unapplied excess of an overpayment. It is reported
	// back, never silently absorbed; the caller decides where it goes.
	Remainder decimal.Decimal
	// LoanStatus is the derived status after the mutation.
	LoanStatus string
}

// Apply credits a payment event against its target installment and appends
// the event to the loan's history. The operation is all-or-nothing: on any
// error the loan is left untouched.
func Apply(loan *domain.Loan, event domain.PaymentEvent, asOf time.Time) (*Result, error) {
	if !event.Amount.IsPositive() {
		return nil, apperrors.WrapInvalidAmount(event.Amount.String())
	}
	if loan.HasPayment(event.ID) {
		return nil, apperrors.WrapDuplicatePayment(event.ID.String())
	}

	inst := loan.Installment(event.InstallmentNumber)
	if inst == nil {
		return nil, apperrors.WrapInstallmentNotFound(loan.LoanID, event.InstallmentNumber)
	}
	if inst.Status == domain.InstallmentStatusPaid {
		return nil, apperrors.WrapAlreadySettled(loan.LoanID, event.InstallmentNumber)
	}

	remaining := inst.Remaining()
	applied := event.Amount
	remainder := decimal.Zero
	if applied.GreaterThan(remaining) {
		applied = remaining
		remainder = event.Amount.Sub(remaining)
	}

	inst.PaidAmount = inst.PaidAmount.Add(applied)
	if inst.PaidAmount.Equal(inst.Amount) {
		inst.Status = domain.InstallmentStatusPaid
	} else {
		inst.Status = domain.InstallmentStatusPartiallyPaid
	}

	loan.Payments = append(loan.Payments, event)
	loan.Status = LoanStatus(loan, asOf)

	return &Result{
		Installment: inst,
		Applied:     applied,
		Remainder:   remainder,
		LoanStatus:  loan.Status,
	}, nil
}

// LoanStatus derives the loan-level status from the schedule. It is
// recomputed after every mutation and on every read; the stored column is
// only a cache of this derivation.
//
// A loan with every installment paid is settled when nothing is owed
// outside the schedule (fee financed in, or no fee), and paid when an
// out-of-band origination fee still lives outside the ledger. An unpaid
// installment due before asOf makes the loan overdue; otherwise it is
// active.
func LoanStatus(loan *domain.Loan, asOf time.Time) string {
	allPaid := true
	overdue := false
	for _, inst := range loan.Schedule {
		if inst.Status != domain.InstallmentStatusPaid {
			allPaid = false
			if inst.IsOverdue(asOf) {
				overdue = true
			}
		}
	}

	switch {
	case allPaid && feeOutstanding(loan):
		return domain.LoanStatusPaid
	case allPaid:
		return domain.LoanStatusSettled
	case overdue:
		return domain.LoanStatusOverdue
	default:
		return domain.LoanStatusActive
	}
}

func feeOutstanding(loan *domain.Loan) bool {
	if loan.Terms.FeeHandling != domain.FeeOutOfBand {
		return false
	}
	fee := loan.Terms.Principal.Mul(loan.Terms.FeeRate).Add(loan.Terms.FeeAmount)
	return fee.IsPositive()
}

// Outstanding returns the total still due across the schedule.
func Outstanding(loan *domain.Loan) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range loan.Schedule {
		total = total.Add(inst.Remaining())
	}
	return total
}

// MissedInstallments counts the longest run of consecutive unpaid overdue
// installments, scanning in due-date order. A paid installment resets the
// run.
func MissedInstallments(loan *domain.Loan, asOf time.Time) int {
	consecutive := 0
	worst := 0
	for _, inst := range loan.Schedule {
		if inst.Status == domain.InstallmentStatusPaid {
			consecutive = 0
			continue
		}
		if inst.IsOverdue(asOf) {
			consecutive++
			if consecutive > worst {
				worst = consecutive
			}
		}
	}
	return worst
}

// IsDelinquent reports whether the borrower has missed at least threshold
// consecutive installments as of the given date.
func IsDelinquent(loan *domain.Loan, asOf time.Time, threshold int) (bool, int) {
	missed := MissedInstallments(loan, asOf)
	return missed >= threshold, missed
}
