package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive  = "active"
	LoanStatusOverdue = "overdue"
	LoanStatusPaid    = "paid"
	LoanStatusSettled = "settled"
)

// Amortization systems supported by the schedule generator.
const (
	SystemEqualPrincipal = "equal-principal"
	SystemPrice          = "price"
)

// Origination fee handling modes.
const (
	FeeFinanced  = "financed"
	FeeOutOfBand = "out-of-band"
)

// LoanTerms are the immutable inputs a schedule is generated from.
type LoanTerms struct {
	Principal    decimal.Decimal `json:"principal" db:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	Installments int             `json:"installments" db:"installments"`
	StartDate    time.Time       `json:"start_date" db:"start_date"`
	FeeRate      decimal.Decimal `json:"fee_rate" db:"fee_rate"`
	FeeAmount    decimal.Decimal `json:"fee_amount" db:"fee_amount"`
	System       string          `json:"system" db:"system"`
	FeeHandling  string          `json:"fee_handling" db:"fee_handling"`
}

// Loan is the aggregate root: terms, the generated schedule and the
// append-only payment history. Status is always derived from the
// installments, never written independently.
type Loan struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	LoanID    string         `json:"loan_id" db:"loan_id"`
	Terms     LoanTerms      `json:"terms"`
	Schedule  []*Installment `json:"schedule"`
	Payments  []PaymentEvent `json:"payments"`
	Status    string         `json:"status" db:"status"`
	Version   int            `json:"version" db:"version"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Installment looks up a schedule entry by its 1-based number.
func (l *Loan) Installment(number int) *Installment {
	for _, inst := range l.Schedule {
		if inst.Number == number {
			return inst
		}
	}
	return nil
}

// HasPayment reports whether an event id is already in the payment history.
func (l *Loan) HasPayment(eventID uuid.UUID) bool {
	for _, p := range l.Payments {
		if p.ID == eventID {
			return true
		}
	}
	return false
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	LoanID       string          `json:"loan_id" validate:"required"`
	Principal    decimal.Decimal `json:"principal" validate:"required,decimal_gt=0"`
	InterestRate decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	Installments int             `json:"installments" validate:"required,gt=0"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
	FeeRate      decimal.Decimal `json:"fee_rate" validate:"decimal_gte=0"`
	FeeAmount    decimal.Decimal `json:"fee_amount" validate:"decimal_gte=0"`
	System       string          `json:"system" validate:"omitempty,oneof=equal-principal price"`
	FeeHandling  string          `json:"fee_handling" validate:"omitempty,oneof=financed out-of-band"`
}

type CreateLoanResponse struct {
	Loan     *Loan           `json:"loan"`
	Schedule []*Installment  `json:"schedule"`
	Fee      decimal.Decimal `json:"origination_fee"`
}

type OutstandingResponse struct {
	LoanID      string          `json:"loan_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type LoanStatusResponse struct {
	LoanID string    `json:"loan_id"`
	Status string    `json:"status"`
	AsOf   time.Time `json:"as_of"`
}

type DelinquentResponse struct {
	LoanID             string `json:"loan_id"`
	IsDelinquent       bool   `json:"is_delinquent"`
	MissedInstallments int    `json:"missed_installments"`
}
