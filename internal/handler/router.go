package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-ledger/pkg/response"
)

// NewRouter wires every route. metrics may be nil.
func NewRouter(ledger *LedgerHandler, health *HealthHandler, metrics http.Handler, logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware, response.LoggingMiddleware(logger))

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/borrowers", ledger.CreateBorrower).Methods(http.MethodPost)
	api.HandleFunc("/borrowers", ledger.ListBorrowers).Methods(http.MethodGet)
	api.HandleFunc("/borrowers/{borrowerId}", ledger.GetBorrower).Methods(http.MethodGet)

	api.HandleFunc("/loans", ledger.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", ledger.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}", ledger.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/accrued", ledger.GetAccrued).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payments", ledger.MakePayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/payments", ledger.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/default", ledger.MarkDefaulted).Methods(http.MethodPost)

	api.HandleFunc("/portfolio/summary", ledger.PortfolioSummary).Methods(http.MethodGet)

	return router
}
