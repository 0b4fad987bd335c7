package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/config"
	"github.com/solcredit/lending-engine/internal/domain"
	"github.com/solcredit/lending-engine/internal/ledger"
	"github.com/solcredit/lending-engine/internal/repository"
	"github.com/solcredit/lending-engine/internal/schedule"
	apperrors "github.com/solcredit/lending-engine/pkg/errors"
)

// LendingService orchestrates the pure schedule/ledger core around the
// persistence and cache collaborators. The core never touches storage; the
// service loads the aggregate, invokes the core and persists the result.
type LendingService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	redis       *redis.Client
	config      *config.Config
	now         func() time.Time
}

func NewLendingService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	redisClient *redis.Client,
	cfg *config.Config,
) *LendingService {
	return &LendingService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		redis:       redisClient,
		config:      cfg,
		now:         time.Now,
	}
}

// CreateLoan generates the installment schedule for the requested terms and
// persists the new aggregate.
func (s *LendingService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	existing, err := s.loanRepo.GetByLoanID(ctx, request.LoanID)
	if err == nil && existing != nil {
		return nil, apperrors.WrapLoanAlreadyExists(request.LoanID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapDatabaseError(err)
	}

	terms := domain.LoanTerms{
		Principal:    request.Principal,
		InterestRate: request.InterestRate,
		Installments: request.Installments,
		StartDate:    request.StartDate,
		FeeRate:      request.FeeRate,
		FeeAmount:    request.FeeAmount,
		System:       request.System,
		FeeHandling:  request.FeeHandling,
	}
	if terms.System == "" {
		terms.System = s.config.Business.AmortizationSystem
	}
	if terms.FeeHandling == "" {
		terms.FeeHandling = s.config.Business.FeeHandling
	}

	generated, err := schedule.Generate(terms)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loan := &domain.Loan{
		ID:        uuid.New(),
		LoanID:    request.LoanID,
		Terms:     terms,
		Schedule:  generated.Installments,
		Status:    domain.LoanStatusActive,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, inst := range loan.Schedule {
		inst.LoanID = loan.LoanID
		inst.CreatedAt = now
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	return &domain.CreateLoanResponse{
		Loan:     loan,
		Schedule: loan.Schedule,
		Fee:      generated.Fee,
	}, nil
}

// MakePayment applies one payment event to a loan. The whole operation is
// retryable: on LOAN_VERSION_CONFLICT the caller reloads and replays the
// same event, and the ledger's duplicate check keeps the replay safe.
func (s *LendingService) MakePayment(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.MakePaymentResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	eventID := uuid.New()
	if request.EventID != "" {
		eventID, err = uuid.Parse(request.EventID)
		if err != nil {
			return nil, apperrors.NewBusinessError(apperrors.ErrCodeInvalidEventID,
				fmt.Sprintf("event_id %q is not a valid UUID", request.EventID), nil)
		}
	}

	now := s.now()
	paymentDate := request.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	event := domain.PaymentEvent{
		ID:                eventID,
		LoanID:            loan.LoanID,
		InstallmentNumber: request.InstallmentNumber,
		Amount:            request.Amount,
		PaymentDate:       paymentDate,
		Method:            request.Method,
		AccountID:         request.AccountID,
		CreatedAt:         now,
	}

	result, err := ledger.Apply(loan, event, now)
	if err != nil {
		return nil, err
	}

	if err := s.loanRepo.SaveApplied(ctx, loan, result.Installment, event, result.Applied); err != nil {
		var business *apperrors.BusinessError
		if errors.As(err, &business) {
			return nil, err
		}
		return nil, apperrors.WrapDatabaseError(err)
	}

	s.invalidateCache(ctx, loanID)

	return &domain.MakePaymentResponse{
		Payment:     event,
		Installment: result.Installment,
		Remainder:   result.Remainder,
		LoanStatus:  result.LoanStatus,
	}, nil
}

// GetLoan returns the full aggregate.
func (s *LendingService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	// The stored status is only a cache of the derivation.
	loan.Status = ledger.LoanStatus(loan, s.now())
	return loan, nil
}

// GetSchedule returns the schedule plus read-time aggregates.
func (s *LendingService) GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	return &domain.ScheduleResponse{
		LoanID:   loanID,
		Schedule: loan.Schedule,
		Summary:  domain.Summarize(loan.Schedule, s.now()),
	}, nil
}

// GetOutstanding returns the total still due across the schedule, cached in
// Redis for the read-heavy dashboard endpoints.
func (s *LendingService) GetOutstanding(ctx context.Context, loanID string) (decimal.Decimal, error) {
	cacheKey := outstandingKey(loanID)
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		if outstanding, parseErr := decimal.NewFromString(cached); parseErr == nil {
			return outstanding, nil
		}
	}

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	totalDue := decimal.Zero
	for _, inst := range loan.Schedule {
		totalDue = totalDue.Add(inst.Amount)
	}
	totalPaid, err := s.paymentRepo.GetTotalPaid(ctx, loanID)
	if err != nil {
		return decimal.Zero, apperrors.WrapDatabaseError(err)
	}
	outstanding := totalDue.Sub(totalPaid)

	s.redis.Set(ctx, cacheKey, outstanding.String(), s.config.GetStatusCacheTTL())

	return outstanding, nil
}

// GetStatus derives the loan status as of now.
func (s *LendingService) GetStatus(ctx context.Context, loanID string) (*domain.LoanStatusResponse, error) {
	now := s.now()

	cacheKey := statusKey(loanID)
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
		return &domain.LoanStatusResponse{LoanID: loanID, Status: cached, AsOf: now}, nil
	}

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	status := ledger.LoanStatus(loan, now)
	s.redis.Set(ctx, cacheKey, status, s.config.GetStatusCacheTTL())

	return &domain.LoanStatusResponse{LoanID: loanID, Status: status, AsOf: now}, nil
}

// GetPayments returns the append-only payment history.
func (s *LendingService) GetPayments(ctx context.Context, loanID string) (*domain.PaymentHistoryResponse, error) {
	if _, err := s.getLoan(ctx, loanID); err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	return &domain.PaymentHistoryResponse{LoanID: loanID, Payments: payments}, nil
}

// IsDelinquent checks consecutive missed installments against the
// configured threshold.
func (s *LendingService) IsDelinquent(ctx context.Context, loanID string) (*domain.DelinquentResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	delinquent, missed := ledger.IsDelinquent(loan, s.now(), s.config.Business.DelinquencyThreshold)

	return &domain.DelinquentResponse{
		LoanID:             loanID,
		IsDelinquent:       delinquent,
		MissedInstallments: missed,
	}, nil
}

// SweepOverdue re-derives the status of every open loan and stores the ones
// that changed. Run daily by the scheduler; returns the number of loans
// whose status moved.
func (s *LendingService) SweepOverdue(ctx context.Context) (int, error) {
	ids, err := s.loanRepo.ListOpenLoanIDs(ctx)
	if err != nil {
		return 0, apperrors.WrapDatabaseError(err)
	}

	now := s.now()
	changed := 0
	for _, loanID := range ids {
		loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
		if err != nil {
			log.Printf("overdue sweep: load loan %s: %v", loanID, err)
			continue
		}

		status := ledger.LoanStatus(loan, now)
		if status == loan.Status {
			continue
		}

		if err := s.loanRepo.UpdateStatus(ctx, loanID, status, loan.Version); err != nil {
			if errors.Is(err, apperrors.ErrVersionConflict) {
				// A payment landed between load and write; the next sweep
				// (or the payment itself) carries the fresh derivation.
				log.Printf("overdue sweep: loan %s changed concurrently, skipping", loanID)
			} else {
				log.Printf("overdue sweep: update loan %s: %v", loanID, err)
			}
			continue
		}
		s.invalidateCache(ctx, loanID)

		log.Printf("overdue sweep: loan %s %s -> %s", loanID, loan.Status, status)
		changed++
	}

	return changed, nil
}

func (s *LendingService) getLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapLoanNotFound(loanID)
		}
		return nil, apperrors.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *LendingService) invalidateCache(ctx context.Context, loanID string) {
	if err := s.redis.Del(ctx, statusKey(loanID), outstandingKey(loanID)).Err(); err != nil {
		log.Printf("cache invalidation for loan %s: %v", loanID, err)
	}
}

func statusKey(loanID string) string {
	return fmt.Sprintf("loan:%s:status", loanID)
}

func outstandingKey(loanID string) string {
	return fmt.Sprintf("loan:%s:outstanding", loanID)
}
