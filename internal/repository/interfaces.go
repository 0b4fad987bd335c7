package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create persists a new loan and its schedule in one transaction
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID retrieves the loan aggregate (terms, schedule, payments)
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// SaveApplied persists the result of a ledger application: the mutated
	// installment, the appended payment event and the derived loan status.
	// The loan row is guarded by its version column; a concurrent writer
	// causes ErrVersionConflict and the caller may reload and retry.
	// applied is the portion of the event amount actually credited (the
	// event amount minus any overpayment remainder).
	SaveApplied(ctx context.Context, loan *domain.Loan, installment *domain.Installment, event domain.PaymentEvent, applied decimal.Decimal) error

	// UpdateStatus stores a freshly derived loan status. Like SaveApplied
	// it is guarded by the version the status was derived from, so a
	// concurrent payment cannot interleave with a stale sweep write.
	UpdateStatus(ctx context.Context, loanID string, status string, version int) error

	// ListOpenLoanIDs returns ids of loans that are not fully paid, for the
	// overdue sweep
	ListOpenLoanIDs(ctx context.Context) ([]string, error)
}

// PaymentRepository defines the interface for payment history reads
type PaymentRepository interface {
	// GetByLoanID retrieves all payment events for a loan in apply order
	GetByLoanID(ctx context.Context, loanID string) ([]domain.PaymentEvent, error)

	// GetTotalPaid sums the applied amounts for a loan
	GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error)
}
