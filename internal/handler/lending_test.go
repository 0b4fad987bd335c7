package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/solcredit/lending-engine/internal/config"
	"github.com/solcredit/lending-engine/internal/domain"
	"github.com/solcredit/lending-engine/internal/schedule"
	"github.com/solcredit/lending-engine/internal/service"
	"github.com/solcredit/lending-engine/tests/mocks"
)

func newTestRouter(loanRepo *mocks.MockLoanRepository, paymentRepo *mocks.MockPaymentRepository) *mux.Router {
	cfg := &config.Config{
		Business: config.BusinessConfig{
			AmortizationSystem:   domain.SystemEqualPrincipal,
			FeeHandling:          domain.FeeFinanced,
			DefaultInterestRate:  "0.02",
			DelinquencyThreshold: 2,
			StatusCacheTTL:       "10m",
		},
	}
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
	svc := service.NewLendingService(loanRepo, paymentRepo, redisClient, cfg)
	h := NewLendingHandler(svc)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/loans", h.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}/schedule", h.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/payments", h.MakePayment).Methods("POST")
	return router
}

func futureLoan(t *testing.T, loanID string) *domain.Loan {
	t.Helper()

	terms := domain.LoanTerms{
		Principal:    decimal.NewFromInt(1500),
		InterestRate: decimal.NewFromFloat(0.10),
		Installments: 3,
		StartDate:    time.Now().AddDate(1, 0, 0),
		System:       domain.SystemPrice,
		FeeHandling:  domain.FeeFinanced,
	}
	generated, err := schedule.Generate(terms)
	require.NoError(t, err)

	loan := &domain.Loan{
		ID:       uuid.New(),
		LoanID:   loanID,
		Terms:    terms,
		Schedule: generated.Installments,
		Status:   domain.LoanStatusActive,
	}
	for _, inst := range loan.Schedule {
		inst.LoanID = loanID
	}
	return loan
}

func TestCreateLoan_Endpoint(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	router := newTestRouter(loanRepo, &mocks.MockPaymentRepository{})

	loanRepo.On("GetByLoanID", mock.Anything, "LOAN-1").Return(nil, sql.ErrNoRows)
	loanRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	body, _ := json.Marshal(map[string]interface{}{
		"loan_id":       "LOAN-1",
		"principal":     "1500",
		"interest_rate": "0.10",
		"installments":  3,
		"start_date":    "2025-11-08T00:00:00Z",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	loanRepo.AssertExpectations(t)
}

func TestCreateLoan_ValidationFailure(t *testing.T) {
	router := newTestRouter(&mocks.MockLoanRepository{}, &mocks.MockPaymentRepository{})

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing loan id",
			body: map[string]interface{}{
				"principal": "1500", "installments": 3, "start_date": "2025-11-08T00:00:00Z",
			},
		},
		{
			name: "zero principal",
			body: map[string]interface{}{
				"loan_id": "LOAN-1", "principal": "0", "installments": 3, "start_date": "2025-11-08T00:00:00Z",
			},
		},
		{
			name: "unknown system",
			body: map[string]interface{}{
				"loan_id": "LOAN-1", "principal": "1500", "installments": 3,
				"start_date": "2025-11-08T00:00:00Z", "system": "balloon",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMakePayment_Endpoint(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	router := newTestRouter(loanRepo, &mocks.MockPaymentRepository{})

	loan := futureLoan(t, "LOAN-2")
	loanRepo.On("GetByLoanID", mock.Anything, "LOAN-2").Return(loan, nil)
	loanRepo.On("SaveApplied", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	body, _ := json.Marshal(map[string]interface{}{
		"installment_number": 1,
		"amount":             loan.Schedule[0].Amount.String(),
		"method":             "transfer",
		"account_id":         "ACC-01",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/LOAN-2/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMakePayment_LoanNotFound(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	router := newTestRouter(loanRepo, &mocks.MockPaymentRepository{})

	loanRepo.On("GetByLoanID", mock.Anything, "LOAN-404").Return(nil, sql.ErrNoRows)

	body, _ := json.Marshal(map[string]interface{}{
		"installment_number": 1,
		"amount":             "100",
		"method":             "transfer",
		"account_id":         "ACC-01",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/LOAN-404/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "LOAN_NOT_FOUND", errResp.Code)
}

func TestMakePayment_AlreadySettledConflict(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	router := newTestRouter(loanRepo, &mocks.MockPaymentRepository{})

	loan := futureLoan(t, "LOAN-3")
	loan.Schedule[0].PaidAmount = loan.Schedule[0].Amount
	loan.Schedule[0].Status = domain.InstallmentStatusPaid
	loanRepo.On("GetByLoanID", mock.Anything, "LOAN-3").Return(loan, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"installment_number": 1,
		"amount":             "100",
		"method":             "transfer",
		"account_id":         "ACC-01",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/LOAN-3/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	loanRepo.AssertNotCalled(t, "SaveApplied")
}

func TestGetSchedule_Endpoint(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	router := newTestRouter(loanRepo, &mocks.MockPaymentRepository{})

	loan := futureLoan(t, "LOAN-4")
	loanRepo.On("GetByLoanID", mock.Anything, "LOAN-4").Return(loan, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/LOAN-4/schedule", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data domain.ScheduleResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Schedule, 3)
	assert.Equal(t, 3, envelope.Data.Summary.TotalInstallments)
	assert.Equal(t, 0, envelope.Data.Summary.OverdueInstallments)
}
