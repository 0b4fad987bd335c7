package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business logic constants
const (
	InstallmentStatusPending       = "pending"
	InstallmentStatusPartiallyPaid = "partially_paid"
	InstallmentStatusPaid          = "paid"
)

// Installment is one schedule entry. Amount is fixed at generation time and
// always equals Principal plus Interest. PaidAmount only grows and never
// passes Amount.
type Installment struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	LoanID     string          `json:"loan_id" db:"loan_id"`
	Number     int             `json:"number" db:"number"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Principal  decimal.Decimal `json:"principal" db:"principal"`
	Interest   decimal.Decimal `json:"interest" db:"interest"`
	PaidAmount decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Remaining returns the amount still due on the installment.
func (i *Installment) Remaining() decimal.Decimal {
	return i.Amount.Sub(i.PaidAmount)
}

// IsOverdue is a read-time presentation state, never stored: an unpaid
// installment whose due date has passed. The comparison is at calendar-day
// granularity, so an installment is never overdue on its own due date no
// matter the clock time of asOf.
func (i *Installment) IsOverdue(asOf time.Time) bool {
	if i.Status == InstallmentStatusPaid {
		return false
	}
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, i.DueDate.Location())
	return i.DueDate.Before(today)
}

type ScheduleResponse struct {
	LoanID   string           `json:"loan_id"`
	Schedule []*Installment   `json:"schedule"`
	Summary  *ScheduleSummary `json:"summary"`
}

// ScheduleSummary aggregates a schedule for presentation.
type ScheduleSummary struct {
	TotalInstallments   int             `json:"total_installments"`
	TotalPrincipal      decimal.Decimal `json:"total_principal"`
	TotalInterest       decimal.Decimal `json:"total_interest"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	PaidInstallments    int             `json:"paid_installments"`
	PaidAmount          decimal.Decimal `json:"paid_amount"`
	OverdueInstallments int             `json:"overdue_installments"`
	OverdueAmount       decimal.Decimal `json:"overdue_amount"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
}

// Summarize computes schedule totals as of the given date.
func Summarize(schedule []*Installment, asOf time.Time) *ScheduleSummary {
	s := &ScheduleSummary{TotalInstallments: len(schedule)}

	for _, inst := range schedule {
		s.TotalPrincipal = s.TotalPrincipal.Add(inst.Principal)
		s.TotalInterest = s.TotalInterest.Add(inst.Interest)
		s.TotalAmount = s.TotalAmount.Add(inst.Amount)
		s.PaidAmount = s.PaidAmount.Add(inst.PaidAmount)
		s.RemainingAmount = s.RemainingAmount.Add(inst.Remaining())

		if inst.Status == InstallmentStatusPaid {
			s.PaidInstallments++
		} else if inst.IsOverdue(asOf) {
			s.OverdueInstallments++
			s.OverdueAmount = s.OverdueAmount.Add(inst.Remaining())
		}
	}

	return s
}
