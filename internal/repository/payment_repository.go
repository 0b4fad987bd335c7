package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/domain"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]domain.PaymentEvent, error) {
	query := `
		SELECT id, loan_id, installment_number, amount, payment_date, method, account_id, created_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY created_at, id
	`

	var payments []domain.PaymentEvent
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(applied_amount), 0)
		FROM payments
		WHERE loan_id = $1
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, loanID); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
