package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEvent is immutable once recorded. The id doubles as the
// idempotency key: replaying an id already in the loan's history is
// rejected by the ledger.
type PaymentEvent struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            string          `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate       time.Time       `json:"payment_date" db:"payment_date"`
	Method            string          `json:"method" db:"method"`
	AccountID         string          `json:"account_id" db:"account_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

type MakePaymentRequest struct {
	EventID           string          `json:"event_id" validate:"omitempty,uuid4"`
	InstallmentNumber int             `json:"installment_number" validate:"required,gt=0"`
	Amount            decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	PaymentDate       time.Time       `json:"payment_date"`
	Method            string          `json:"method" validate:"required"`
	AccountID         string          `json:"account_id" validate:"required"`
}

type MakePaymentResponse struct {
	Payment     PaymentEvent    `json:"payment"`
	Installment *Installment    `json:"installment"`
	Remainder   decimal.Decimal `json:"unapplied_remainder"`
	LoanStatus  string          `json:"loan_status"`
}

type PaymentHistoryResponse struct {
	LoanID   string         `json:"loan_id"`
	Payments []PaymentEvent `json:"payments"`
}
