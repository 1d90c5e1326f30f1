package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// LedgerService is what the HTTP layer needs from the service.
type LedgerService interface {
	CreateBorrower(ctx context.Context, request *domain.CreateBorrowerRequest) (*domain.Borrower, error)
	GetBorrower(ctx context.Context, borrowerID string) (*domain.Borrower, error)
	ListBorrowers(ctx context.Context) ([]*domain.Borrower, error)
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	ListLoans(ctx context.Context, borrowerID string) ([]*domain.Loan, error)
	PreviewAccrual(ctx context.Context, loanID string, asOf time.Time) (*domain.AccrualPreview, error)
	ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal, paymentDate time.Time) (*domain.PaymentResult, error)
	ListPayments(ctx context.Context, loanID string) ([]*domain.Payment, error)
	MarkDefaulted(ctx context.Context, loanID string) (*domain.Loan, error)
	PortfolioSummary(ctx context.Context) (*domain.PortfolioSummary, error)
}

type LedgerHandler struct {
	service   LedgerService
	validator *validator.Validate
	now       func() time.Time
}

func NewLedgerHandler(service LedgerService) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: newValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// newValidator validates decimal.Decimal fields through their string form.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt_zero", decimalRule(func(d decimal.Decimal) bool { return d.IsPositive() }))
	_ = v.RegisterValidation("decimal_gte_zero", decimalRule(func(d decimal.Decimal) bool { return !d.IsNegative() }))
	_ = v.RegisterValidation("decimal_currency", decimalRule(utils.HasCurrencyPrecision))
	return v
}

func decimalRule(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := utils.DecimalFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return ok(d)
	}
}

// CreateBorrower handles POST /api/v1/borrowers
func (h *LedgerHandler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBorrowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.FromError(w, customError.WrapInvalidBorrowerRequest(err.Error()))
		return
	}

	borrower, err := h.service.CreateBorrower(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, borrower)
}

// ListBorrowers handles GET /api/v1/borrowers
func (h *LedgerHandler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.service.ListBorrowers(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, borrowers)
}

// GetBorrower handles GET /api/v1/borrowers/{borrowerId}
func (h *LedgerHandler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	borrower, err := h.service.GetBorrower(r.Context(), mux.Vars(r)["borrowerId"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, borrower)
}

// CreateLoan handles POST /api/v1/loans
func (h *LedgerHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.FromError(w, customError.WrapInvalidLoanRequest(err.Error()))
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, loan)
}

// ListLoans handles GET /api/v1/loans?borrower_id=
func (h *LedgerHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context(), r.URL.Query().Get("borrower_id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loans)
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LedgerHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// GetAccrued handles GET /api/v1/loans/{loanId}/accrued?as_of=YYYY-MM-DD.
// as_of defaults to today.
func (h *LedgerHandler) GetAccrued(w http.ResponseWriter, r *http.Request) {
	asOf := utils.DateOnly(h.now())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := utils.ParseDate(raw)
		if err != nil {
			response.FromError(w, customError.NewBusinessError(customError.ErrCodeInvalidInput, "as_of must be YYYY-MM-DD", err))
			return
		}
		asOf = parsed
	}

	preview, err := h.service.PreviewAccrual(r.Context(), mux.Vars(r)["loanId"], asOf)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, preview)
}

// MakePayment handles POST /api/v1/loans/{loanId}/payments
func (h *LedgerHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	var req domain.MakePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && fieldErrs[0].Field() == "Amount" {
			response.FromError(w, customError.WrapInvalidPaymentAmount(loanID, req.Amount.String()))
			return
		}
		response.FromError(w, customError.NewBusinessError(customError.ErrCodeInvalidInput, err.Error(), nil))
		return
	}

	paymentDate, err := utils.ParseDate(req.PaymentDate)
	if err != nil {
		response.FromError(w, customError.NewBusinessError(customError.ErrCodeInvalidInput, "payment_date must be YYYY-MM-DD", err))
		return
	}

	result, err := h.service.ApplyPayment(r.Context(), loanID, req.Amount, paymentDate)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, result)
}

// ListPayments handles GET /api/v1/loans/{loanId}/payments
func (h *LedgerHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payments)
}

// MarkDefaulted handles POST /api/v1/loans/{loanId}/default
func (h *LedgerHandler) MarkDefaulted(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.MarkDefaulted(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// PortfolioSummary handles GET /api/v1/portfolio/summary
func (h *LedgerHandler) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.PortfolioSummary(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, summary)
}
