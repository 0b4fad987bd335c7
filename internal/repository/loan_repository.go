package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/domain"
	apperrors "github.com/solcredit/lending-engine/pkg/errors"
)

type loanRepository struct {
	db       *sqlx.DB
	payments PaymentRepository
}

func NewLoanRepository(db *sqlx.DB, payments PaymentRepository) LoanRepository {
	return &loanRepository{db: db, payments: payments}
}

// loanRow flattens the aggregate's terms into the loans table columns.
type loanRow struct {
	ID           uuid.UUID       `db:"id"`
	LoanID       string          `db:"loan_id"`
	Principal    decimal.Decimal `db:"principal"`
	InterestRate decimal.Decimal `db:"interest_rate"`
	Installments int             `db:"installments"`
	StartDate    time.Time       `db:"start_date"`
	FeeRate      decimal.Decimal `db:"fee_rate"`
	FeeAmount    decimal.Decimal `db:"fee_amount"`
	System       string          `db:"system"`
	FeeHandling  string          `db:"fee_handling"`
	Status       string          `db:"status"`
	Version      int             `db:"version"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	loanQuery := `
		INSERT INTO loans (id, loan_id, principal, interest_rate, installments, start_date,
			fee_rate, fee_amount, system, fee_handling, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	installmentQuery := `
		INSERT INTO installments (id, loan_id, number, due_date, amount, principal, interest, paid_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, loanQuery,
		loan.ID,
		loan.LoanID,
		loan.Terms.Principal,
		loan.Terms.InterestRate,
		loan.Terms.Installments,
		loan.Terms.StartDate,
		loan.Terms.FeeRate,
		loan.Terms.FeeAmount,
		loan.Terms.System,
		loan.Terms.FeeHandling,
		loan.Status,
		loan.Version,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, inst := range loan.Schedule {
		_, err = tx.ExecContext(ctx, installmentQuery,
			inst.ID,
			inst.LoanID,
			inst.Number,
			inst.DueDate,
			inst.Amount,
			inst.Principal,
			inst.Interest,
			inst.PaidAmount,
			inst.Status,
			inst.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT id, loan_id, principal, interest_rate, installments, start_date,
			fee_rate, fee_amount, system, fee_handling, status, version, created_at, updated_at
		FROM loans
		WHERE loan_id = $1
	`

	var row loanRow
	if err := r.db.GetContext(ctx, &row, query, loanID); err != nil {
		return nil, err
	}

	loan := row.toLoan()

	schedule, err := r.getSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}
	loan.Schedule = schedule

	payments, err := r.payments.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	loan.Payments = payments

	return loan, nil
}

func (r *loanRepository) getSchedule(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	query := `
		SELECT id, loan_id, number, due_date, amount, principal, interest, paid_amount, status, created_at
		FROM installments
		WHERE loan_id = $1
		ORDER BY number
	`

	var schedule []*domain.Installment
	if err := r.db.SelectContext(ctx, &schedule, query, loanID); err != nil {
		return nil, err
	}

	return schedule, nil
}

func (r *loanRepository) SaveApplied(ctx context.Context, loan *domain.Loan, installment *domain.Installment, event domain.PaymentEvent, applied decimal.Decimal) error {
	loanQuery := `
		UPDATE loans
		SET status = $3, version = version + 1, updated_at = $4
		WHERE loan_id = $1 AND version = $2
	`
	installmentQuery := `
		UPDATE installments
		SET paid_amount = $3, status = $4
		WHERE loan_id = $1 AND number = $2
	`
	paymentQuery := `
		INSERT INTO payments (id, loan_id, installment_number, amount, applied_amount, payment_date, method, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, loanQuery, loan.LoanID, loan.Version, loan.Status, time.Now())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Another writer bumped the version since we loaded the aggregate.
		return apperrors.WrapVersionConflict(loan.LoanID)
	}

	_, err = tx.ExecContext(ctx, installmentQuery,
		loan.LoanID,
		installment.Number,
		installment.PaidAmount,
		installment.Status,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, paymentQuery,
		event.ID,
		event.LoanID,
		event.InstallmentNumber,
		event.Amount,
		applied,
		event.PaymentDate,
		event.Method,
		event.AccountID,
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	loan.Version++
	return nil
}

func (r *loanRepository) UpdateStatus(ctx context.Context, loanID string, status string, version int) error {
	query := `
		UPDATE loans
		SET status = $3, version = version + 1, updated_at = $4
		WHERE loan_id = $1 AND version = $2
	`

	res, err := r.db.ExecContext(ctx, query, loanID, version, status, time.Now())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.WrapVersionConflict(loanID)
	}
	return nil
}

func (r *loanRepository) ListOpenLoanIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT loan_id
		FROM loans
		WHERE status NOT IN ($1, $2)
		ORDER BY loan_id
	`

	var ids []string
	err := r.db.SelectContext(ctx, &ids, query, domain.LoanStatusPaid, domain.LoanStatusSettled)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (row *loanRow) toLoan() *domain.Loan {
	return &domain.Loan{
		ID:     row.ID,
		LoanID: row.LoanID,
		Terms: domain.LoanTerms{
			Principal:    row.Principal,
			InterestRate: row.InterestRate,
			Installments: row.Installments,
			StartDate:    row.StartDate,
			FeeRate:      row.FeeRate,
			FeeAmount:    row.FeeAmount,
			System:       row.System,
			FeeHandling:  row.FeeHandling,
		},
		Status:    row.Status,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
