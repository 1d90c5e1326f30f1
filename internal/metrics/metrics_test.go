package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObservePayment(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)

	m.ObservePayment(OutcomeApplied, 10*time.Millisecond)
	m.ObservePayment(OutcomeApplied, 5*time.Millisecond)
	m.ObservePayment(OutcomeConflict, time.Millisecond)
	m.LoanClosed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.paymentsApplied.WithLabelValues(OutcomeApplied)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.paymentsApplied.WithLabelValues(OutcomeConflict)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.loansClosed))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObservePayment(OutcomeApplied, time.Second)
		m.ObserveLockWait(time.Second)
		m.LoanClosed()
	})
}

func TestHandler_ExposesCollectors(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.ObserveLockWait(time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "loan_ledger_loan_lock_wait_seconds"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
