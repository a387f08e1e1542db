package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "canteen_"

const (
	OutcomeAdmitted          = "admitted"
	OutcomeReplayed          = "replayed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeConflict          = "conflict"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

type Metrics struct {
	admissions     *prometheus.CounterVec
	admittedAmount *prometheus.CounterVec
	cancellations  *prometheus.CounterVec
	txRetries      prometheus.Counter
	outboxResults  *prometheus.CounterVec
	purged         prometheus.Counter
	httpDuration   *prometheus.HistogramVec
	registerer     prometheus.Registerer
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "order_admissions_total",
				Help: "Order admission attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		admittedAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "order_debited_minor_units_total",
				Help: "Wallet debits from admitted orders in minor units",
			},
			[]string{"kind"},
		),
		cancellations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "order_cancellations_total",
				Help: "Order cancellations by outcome",
			},
			[]string{"outcome"},
		),
		txRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "tx_retries_total",
				Help: "Units of work re-run after an optimistic lock or serialization failure",
			},
		),
		outboxResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_events_total",
				Help: "Outbox events handled by the relay by status",
			},
			[]string{"status"},
		),
		purged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "idempotency_keys_purged_total",
				Help: "Expired idempotency records deleted",
			},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		registerer: reg,
	}

	reg.MustRegister(
		m.admissions,
		m.admittedAmount,
		m.cancellations,
		m.txRetries,
		m.outboxResults,
		m.purged,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) ObserveAdmission(kind, outcome string, amount int64) {
	m.admissions.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeAdmitted && amount > 0 {
		m.admittedAmount.WithLabelValues(kind).Add(float64(amount))
	}
}

func (m *Metrics) ObserveCancellation(outcome string) {
	m.cancellations.WithLabelValues(outcome).Inc()
}

// ObserveTxRetry matches the retry hook signature of the transaction runner.
func (m *Metrics) ObserveTxRetry(_ error, _ time.Duration) {
	m.txRetries.Inc()
}

func (m *Metrics) ObserveOutbox(status string) {
	m.outboxResults.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePurge(n int64) {
	m.purged.Add(float64(n))
}

// ObserveRequest takes the mux route pattern, never the raw path, to keep
// label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// RegisterOutboxBacklog exposes the number of undispatched outbox events,
// sampled on every scrape.
func (m *Metrics) RegisterOutboxBacklog(count func(ctx context.Context) (int, error)) {
	m.registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "outbox_pending_events",
			Help: "Outbox events waiting to be published",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := count(ctx)
			if err != nil {
				return -1
			}
			return float64(n)
		},
	))
}
