package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/logger"
	"github.com/segyhp/loan-ledger/pkg/response"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreateBorrower(ctx context.Context, request *domain.CreateBorrowerRequest) (*domain.Borrower, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockLedgerService) GetBorrower(ctx context.Context, borrowerID string) (*domain.Borrower, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Borrower), args.Error(1)
}

func (m *MockLedgerService) ListBorrowers(ctx context.Context) ([]*domain.Borrower, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Borrower), args.Error(1)
}

func (m *MockLedgerService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) ListLoans(ctx context.Context, borrowerID string) ([]*domain.Loan, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) PreviewAccrual(ctx context.Context, loanID string, asOf time.Time) (*domain.AccrualPreview, error) {
	args := m.Called(ctx, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccrualPreview), args.Error(1)
}

func (m *MockLedgerService) ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal, paymentDate time.Time) (*domain.PaymentResult, error) {
	args := m.Called(ctx, loanID, amount, paymentDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}

func (m *MockLedgerService) ListPayments(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockLedgerService) MarkDefaulted(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) PortfolioSummary(ctx context.Context) (*domain.PortfolioSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PortfolioSummary), args.Error(1)
}

const testLoanID = "3f1c2b8e-8f0a-4c55-9d1e-2a7b6c5d4e3f"

func newTestRouter(svc *MockLedgerService) *mux.Router {
	ledger := NewLedgerHandler(svc)
	ledger.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	health := NewHealthHandler(time.Second, map[string]Pinger{})
	return NewRouter(ledger, health, nil, logger.Discard())
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLedgerHandler_MakePayment(t *testing.T) {
	paymentDate := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockLedgerService)
		expectedStatus int
		expectedCode   string
		checkResponse  func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "payment applied",
			requestBody: `{"amount": "5000.00", "payment_date": "2023-12-01"}`,
			setupMock: func(svc *MockLedgerService) {
				svc.On("ApplyPayment", mock.Anything, testLoanID, mock.MatchedBy(func(a decimal.Decimal) bool {
					return a.Equal(decimal.NewFromInt(5000))
				}), paymentDate).Return(&domain.PaymentResult{
					PaymentID:               "p-1",
					LoanID:                  testLoanID,
					PaymentDate:             "2023-12-01",
					Amount:                  decimal.NewFromInt(5000),
					AccruedInterest:         decimal.NewFromInt(2500),
					InterestComponent:       decimal.NewFromInt(2500),
					PrincipalComponent:      decimal.NewFromInt(2500),
					InterestShortfall:       decimal.Zero,
					NewOutstandingPrincipal: decimal.NewFromInt(47500),
					Status:                  domain.LoanStatusActive,
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var body struct {
					Success bool                 `json:"success"`
					Data    domain.PaymentResult `json:"data"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.True(t, body.Success)
				assert.Equal(t, "p-1", body.Data.PaymentID)
				assert.True(t, body.Data.NewOutstandingPrincipal.Equal(decimal.NewFromInt(47500)))
			},
		},
		{
			name:           "numeric amount accepted",
			requestBody:    `{"amount": 12.5, "payment_date": "2023-12-01"}`,
			expectedStatus: http.StatusCreated,
			setupMock: func(svc *MockLedgerService) {
				svc.On("ApplyPayment", mock.Anything, testLoanID, mock.MatchedBy(func(a decimal.Decimal) bool {
					return a.Equal(decimal.RequireFromString("12.5"))
				}), paymentDate).Return(&domain.PaymentResult{PaymentID: "p-2"}, nil).Once()
			},
		},
		{
			name:           "zero amount rejected before service",
			requestBody:    `{"amount": "0", "payment_date": "2023-12-01"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidInput,
		},
		{
			name:           "sub-cent amount rejected",
			requestBody:    `{"amount": "10.005", "payment_date": "2023-12-01"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidInput,
		},
		{
			name:           "missing payment date",
			requestBody:    `{"amount": "10"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidInput,
		},
		{
			name:           "malformed json",
			requestBody:    `{"amount": `,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "closed loan",
			requestBody: `{"amount": "10", "payment_date": "2023-12-01"}`,
			setupMock: func(svc *MockLedgerService) {
				svc.On("ApplyPayment", mock.Anything, testLoanID, mock.Anything, paymentDate).
					Return(nil, customError.WrapInvalidState(testLoanID, "closed")).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeInvalidState,
		},
		{
			name:        "unknown loan",
			requestBody: `{"amount": "10", "payment_date": "2023-12-01"}`,
			setupMock: func(svc *MockLedgerService) {
				svc.On("ApplyPayment", mock.Anything, testLoanID, mock.Anything, paymentDate).
					Return(nil, customError.WrapLoanNotFound(testLoanID)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   customError.ErrCodeNotFound,
		},
		{
			name:        "concurrent modification",
			requestBody: `{"amount": "10", "payment_date": "2023-12-01"}`,
			setupMock: func(svc *MockLedgerService) {
				svc.On("ApplyPayment", mock.Anything, testLoanID, mock.Anything, paymentDate).
					Return(nil, customError.WrapConcurrencyConflict(testLoanID, errors.New("lock busy"))).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeConcurrencyConflict,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.True(t, decodeError(t, w).Retryable)
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockLedgerService{}
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/loans/"+testLoanID+"/payments", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Code)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLedgerHandler_CreateLoan(t *testing.T) {
	borrowerID := "8d6f2c1a-1b2c-4d3e-9f8a-7b6c5d4e3f2a"

	t.Run("created", func(t *testing.T) {
		svc := &MockLedgerService{}
		svc.On("CreateLoan", mock.Anything, mock.MatchedBy(func(req *domain.CreateLoanRequest) bool {
			return req.BorrowerID == borrowerID &&
				req.PrincipalAmount.Equal(decimal.NewFromInt(50000)) &&
				req.InterestRate.Equal(decimal.NewFromInt(5)) &&
				req.InterestFrequency == "monthly" &&
				req.StartDate == "2023-11-01"
		})).Return(&domain.Loan{ID: testLoanID, BorrowerID: borrowerID, Status: domain.LoanStatusActive}, nil).Once()

		w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/loans", map[string]interface{}{
			"borrower_id":        borrowerID,
			"principal_amount":   "50000",
			"interest_rate":      "5",
			"interest_frequency": "monthly",
			"start_date":         "2023-11-01",
		})

		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		svc.AssertExpectations(t)
	})

	invalid := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "negative principal", body: map[string]interface{}{"borrower_id": borrowerID, "principal_amount": "-1", "interest_rate": "5", "interest_frequency": "monthly", "start_date": "2023-11-01"}},
		{name: "negative rate", body: map[string]interface{}{"borrower_id": borrowerID, "principal_amount": "100", "interest_rate": "-5", "interest_frequency": "monthly", "start_date": "2023-11-01"}},
		{name: "daily frequency", body: map[string]interface{}{"borrower_id": borrowerID, "principal_amount": "100", "interest_rate": "5", "interest_frequency": "daily", "start_date": "2023-11-01"}},
		{name: "borrower not a uuid", body: map[string]interface{}{"borrower_id": "bob", "principal_amount": "100", "interest_rate": "5", "interest_frequency": "weekly", "start_date": "2023-11-01"}},
		{name: "bad start date", body: map[string]interface{}{"borrower_id": borrowerID, "principal_amount": "100", "interest_rate": "5", "interest_frequency": "weekly", "start_date": "Nov 1"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockLedgerService{}
			w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/loans", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, customError.ErrCodeInvalidInput, decodeError(t, w).Code)
			svc.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerHandler_GetAccrued(t *testing.T) {
	t.Run("explicit as_of", func(t *testing.T) {
		svc := &MockLedgerService{}
		asOf := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
		svc.On("PreviewAccrual", mock.Anything, testLoanID, asOf).
			Return(&domain.AccrualPreview{LoanID: testLoanID, Days: 30, AccruedInterest: decimal.NewFromInt(2500)}, nil).Once()

		w := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/loans/"+testLoanID+"/accrued?as_of=2023-12-01", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("defaults to today", func(t *testing.T) {
		svc := &MockLedgerService{}
		today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		svc.On("PreviewAccrual", mock.Anything, testLoanID, today).
			Return(&domain.AccrualPreview{LoanID: testLoanID}, nil).Once()

		w := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/loans/"+testLoanID+"/accrued", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad as_of", func(t *testing.T) {
		svc := &MockLedgerService{}
		w := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/loans/"+testLoanID+"/accrued?as_of=yesterday", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "PreviewAccrual", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLedgerHandler_Routes(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		setupMock      func(*MockLedgerService)
		expectedStatus int
	}{
		{
			name: "create borrower", method: http.MethodPost, path: "/api/v1/borrowers",
			body: map[string]string{"name": "Budi"},
			setupMock: func(svc *MockLedgerService) {
				svc.On("CreateBorrower", mock.Anything, mock.MatchedBy(func(r *domain.CreateBorrowerRequest) bool {
					return r.Name == "Budi"
				})).Return(&domain.Borrower{ID: "b-1", Name: "Budi"}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "create borrower without name", method: http.MethodPost, path: "/api/v1/borrowers",
			body:           map[string]string{"phone": "123"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "list borrowers", method: http.MethodGet, path: "/api/v1/borrowers",
			setupMock: func(svc *MockLedgerService) {
				svc.On("ListBorrowers", mock.Anything).Return([]*domain.Borrower{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "get borrower missing", method: http.MethodGet, path: "/api/v1/borrowers/b-9",
			setupMock: func(svc *MockLedgerService) {
				svc.On("GetBorrower", mock.Anything, "b-9").Return(nil, customError.WrapBorrowerNotFound("b-9")).Once()
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "list loans by borrower", method: http.MethodGet, path: "/api/v1/loans?borrower_id=b-1",
			setupMock: func(svc *MockLedgerService) {
				svc.On("ListLoans", mock.Anything, "b-1").Return([]*domain.Loan{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "get loan", method: http.MethodGet, path: "/api/v1/loans/" + testLoanID,
			setupMock: func(svc *MockLedgerService) {
				svc.On("GetLoan", mock.Anything, testLoanID).Return(&domain.Loan{ID: testLoanID}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "list payments", method: http.MethodGet, path: "/api/v1/loans/" + testLoanID + "/payments",
			setupMock: func(svc *MockLedgerService) {
				svc.On("ListPayments", mock.Anything, testLoanID).Return([]*domain.Payment{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "mark defaulted twice", method: http.MethodPost, path: "/api/v1/loans/" + testLoanID + "/default",
			setupMock: func(svc *MockLedgerService) {
				svc.On("MarkDefaulted", mock.Anything, testLoanID).Return(nil, customError.WrapInvalidState(testLoanID, "defaulted")).Once()
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "portfolio summary", method: http.MethodGet, path: "/api/v1/portfolio/summary",
			setupMock: func(svc *MockLedgerService) {
				svc.On("PortfolioSummary", mock.Anything).Return(&domain.PortfolioSummary{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "persistence failure hides detail", method: http.MethodGet, path: "/api/v1/portfolio/summary",
			setupMock: func(svc *MockLedgerService) {
				svc.On("PortfolioSummary", mock.Anything).Return(nil, customError.WrapPersistenceFailure("", errors.New("pq: password authentication failed"))).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockLedgerService{}
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			w := do(t, newTestRouter(svc), tt.method, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.NotContains(t, w.Body.String(), "password")
			svc.AssertExpectations(t)
		})
	}
}
