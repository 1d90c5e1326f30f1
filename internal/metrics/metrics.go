package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loan_ledger"

// Payment outcomes used as the "outcome" label.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Metrics holds the ledger's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	paymentsApplied *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	lockWait        prometheus.Histogram
	loansClosed     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		paymentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by outcome.",
		}, []string{"outcome"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_apply_duration_seconds",
			Help:      "Time spent applying a payment, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loan_lock_wait_seconds",
			Help:      "Time spent waiting for the per-loan lock.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		loansClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_closed_total",
			Help:      "Loans closed by a payment.",
		}),
	}
	reg.MustRegister(m.paymentsApplied, m.applyDuration, m.lockWait, m.loansClosed)
	return m
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) ObservePayment(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.paymentsApplied.WithLabelValues(outcome).Inc()
	m.applyDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveLockWait(took time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(took.Seconds())
}

func (m *Metrics) LoanClosed() {
	if m == nil {
		return
	}
	m.loansClosed.Inc()
}
