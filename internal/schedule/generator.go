// Package schedule turns loan terms into an installment plan. Generation is
// deterministic: the same terms always produce the same due dates and the
// same principal/interest split.
package schedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/domain"
	apperrors "github.com/solcredit/lending-engine/pkg/errors"
)

// Result carries the generated plan plus the origination fee so the caller
// can route an out-of-band fee separately from the schedule.
type Result struct {
	Installments []*domain.Installment
	// Fee is the one-time origination charge computed against the
	// principal. Zero when no fee rate or fixed fee was supplied.
	Fee decimal.Decimal
	// FinancedPrincipal is the base the schedule was split from: the
	// principal plus the fee when the fee is financed, the bare principal
	// otherwise.
	FinancedPrincipal decimal.Decimal
}

// Generate computes the installment plan for the given terms.
//
// Two amortization systems are supported. The default, equal-principal,
// keeps the principal share constant at financed/N and charges flat simple
// interest of financed*rate split evenly across the periods. The price
// (annuity) system keeps the total payment constant and computes each
// period's interest on the declining balance.
//
// All splits are rounded to cents, half up. Whatever residual the rounding
// leaves is absorbed into the last installment so that the principal shares
// sum to the financed principal exactly.
func Generate(terms domain.LoanTerms) (*Result, error) {
	if err := validate(terms); err != nil {
		return nil, err
	}

	fee := terms.Principal.Mul(terms.FeeRate).Add(terms.FeeAmount).Round(2)

	financed := terms.Principal
	if feeHandling(terms) == domain.FeeFinanced {
		financed = financed.Add(fee)
	}

	var installments []*domain.Installment
	if system(terms) == domain.SystemPrice {
		installments = generatePrice(terms, financed)
	} else {
		installments = generateEqualPrincipal(terms, financed)
	}

	return &Result{
		Installments:      installments,
		Fee:               fee,
		FinancedPrincipal: financed,
	}, nil
}

func validate(terms domain.LoanTerms) error {
	if !terms.Principal.IsPositive() {
		return apperrors.WrapInvalidTerms("principal must be positive")
	}
	if terms.Installments <= 0 {
		return apperrors.WrapInvalidTerms("installment count must be positive")
	}
	if terms.InterestRate.IsNegative() {
		return apperrors.WrapInvalidTerms("interest rate cannot be negative")
	}
	if terms.StartDate.IsZero() {
		return apperrors.WrapInvalidTerms("start date is required")
	}
	if terms.FeeRate.IsNegative() || terms.FeeAmount.IsNegative() {
		return apperrors.WrapInvalidTerms("origination fee cannot be negative")
	}
	switch terms.System {
	case "", domain.SystemEqualPrincipal, domain.SystemPrice:
	default:
		return apperrors.WrapInvalidTerms("unknown amortization system: " + terms.System)
	}
	switch terms.FeeHandling {
	case "", domain.FeeFinanced, domain.FeeOutOfBand:
	default:
		return apperrors.WrapInvalidTerms("unknown fee handling: " + terms.FeeHandling)
	}
	return nil
}

func system(terms domain.LoanTerms) string {
	if terms.System == "" {
		return domain.SystemEqualPrincipal
	}
	return terms.System
}

func feeHandling(terms domain.LoanTerms) string {
	if terms.FeeHandling == "" {
		return domain.FeeFinanced
	}
	return terms.FeeHandling
}

func generateEqualPrincipal(terms domain.LoanTerms, financed decimal.Decimal) []*domain.Installment {
	n := terms.Installments
	totalInterest := financed.Mul(terms.InterestRate).Round(2)

	principals := allocate(financed, n)
	interests := allocate(totalInterest, n)

	installments := make([]*domain.Installment, 0, n)
	for k := 1; k <= n; k++ {
		installments = append(installments, newInstallment(terms, k, principals[k-1], interests[k-1]))
	}

	return installments
}

var cent = decimal.New(1, -2)

// allocate splits total into n cent-rounded shares: the first n-1 take the
// rounded even share and the last absorbs the residual. Half-up rounding
// can leave the residual negative (total 0.10 over 12 rounds to twelve
// 0.01 shares); trailing shares then give a cent back until the residual
// reaches zero, so no share is ever negative and the shares still sum to
// total exactly.
func allocate(total decimal.Decimal, n int) []decimal.Decimal {
	share := total.Div(decimal.NewFromInt(int64(n))).Round(2)

	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}

	last := total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	for i := n - 2; i >= 0 && last.IsNegative(); i-- {
		shares[i] = shares[i].Sub(cent)
		last = last.Add(cent)
	}
	shares[n-1] = last

	return shares
}

func generatePrice(terms domain.LoanTerms, financed decimal.Decimal) []*domain.Installment {
	n := terms.Installments
	rate := terms.InterestRate

	// Zero rate degenerates to a plain principal split.
	if rate.IsZero() {
		return generateEqualPrincipal(terms, financed)
	}

	// payment = P * r / (1 - (1+r)^-N)
	one := decimal.NewFromInt(1)
	growth := one.Add(rate).Pow(decimal.NewFromInt(int64(n)))
	payment := financed.Mul(rate).Mul(growth).Div(growth.Sub(one)).Round(2)

	installments := make([]*domain.Installment, 0, n)
	outstanding := financed
	for k := 1; k <= n; k++ {
		interest := outstanding.Mul(rate).Round(2)
		principal := payment.Sub(interest)
		if k == n {
			// The declining balance rarely lands on zero after rounded
			// payments; the closing installment clears it exactly.
			principal = outstanding
		}

		installments = append(installments, newInstallment(terms, k, principal, interest))
		outstanding = outstanding.Sub(principal)
	}

	return installments
}

func newInstallment(terms domain.LoanTerms, number int, principal, interest decimal.Decimal) *domain.Installment {
	return &domain.Installment{
		ID:         uuid.New(),
		Number:     number,
		DueDate:    DueDate(terms.StartDate, number),
		Amount:     principal.Add(interest),
		Principal:  principal,
		Interest:   interest,
		PaidAmount: decimal.Zero,
		Status:     domain.InstallmentStatusPending,
	}
}

// DueDate returns the due date of installment number: the start date
// advanced by that many calendar months, keeping the day of month and
// clamping to the last day of shorter months (Jan 31 + 1 month = Feb 28/29).
func DueDate(start time.Time, number int) time.Time {
	year, month, day := start.Date()

	firstOfTarget := time.Date(year, month+time.Month(number), 1, 0, 0, 0, 0, start.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, start.Location())
}
