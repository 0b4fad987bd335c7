package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/solcredit/lending-engine/internal/domain"
	"github.com/solcredit/lending-engine/internal/service"
	apperrors "github.com/solcredit/lending-engine/pkg/errors"
	"github.com/solcredit/lending-engine/pkg/response"
)

type LendingHandler struct {
	service   *service.LendingService
	validator *validator.Validate
}

func NewLendingHandler(service *service.LendingService) *LendingHandler {
	return &LendingHandler{
		service:   service,
		validator: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("decimal_gt", decimalCompare(func(d, param decimal.Decimal) bool {
		return d.GreaterThan(param)
	}))
	v.RegisterValidation("decimal_gte", decimalCompare(func(d, param decimal.Decimal) bool {
		return d.GreaterThanOrEqual(param)
	}))

	return v
}

func decimalCompare(cmp func(d, param decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.Struct {
			return false
		}
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		param, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return cmp(d, param)
	}
}

// CreateLoan handles POST /api/v1/loans
func (h *LendingHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	result, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, result)
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LendingHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), loanID(r))
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, loan)
}

// GetSchedule handles GET /api/v1/loans/{loanId}/schedule
func (h *LendingHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetSchedule(r.Context(), loanID(r))
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// GetOutstanding handles GET /api/v1/loans/{loanId}/outstanding
func (h *LendingHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	id := loanID(r)
	outstanding, err := h.service.GetOutstanding(r.Context(), id)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.OutstandingResponse{LoanID: id, Outstanding: outstanding})
}

// GetStatus handles GET /api/v1/loans/{loanId}/status
func (h *LendingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetStatus(r.Context(), loanID(r))
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// MakePayment handles POST /api/v1/loans/{loanId}/payments
func (h *LendingHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var request domain.MakePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	result, err := h.service.MakePayment(r.Context(), loanID(r), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, result)
}

// GetPayments handles GET /api/v1/loans/{loanId}/payments
func (h *LendingHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetPayments(r.Context(), loanID(r))
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// IsDelinquent handles GET /api/v1/loans/{loanId}/delinquent
func (h *LendingHandler) IsDelinquent(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.IsDelinquent(r.Context(), loanID(r))
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, result)
}

func loanID(r *http.Request) string {
	return mux.Vars(r)["loanId"]
}

func writeBusinessError(w http.ResponseWriter, err error) {
	var business *apperrors.BusinessError
	if !errors.As(err, &business) {
		response.InternalServerError(w, "Unexpected error", err)
		return
	}

	switch business.Code {
	case apperrors.ErrCodeLoanNotFound, apperrors.ErrCodeInstallmentNotFound:
		response.NotFound(w, business.Message)
	case apperrors.ErrCodeLoanAlreadyExists, apperrors.ErrCodeDuplicatePayment,
		apperrors.ErrCodeAlreadySettled, apperrors.ErrCodeVersionConflict:
		response.Error(w, http.StatusConflict, business.Message, business.Err)
	case apperrors.ErrCodeInvalidTerms, apperrors.ErrCodeInvalidAmount, apperrors.ErrCodeInvalidEventID:
		response.BadRequest(w, business.Message, business.Err)
	default:
		response.InternalServerError(w, business.Message, business.Err)
	}
}
