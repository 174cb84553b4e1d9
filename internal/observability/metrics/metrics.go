package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referraldesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "referraldesk_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	engineOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "referraldesk_engine_operation_duration_seconds",
		Help:    "Duration of referral link engine operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})

	transactionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referraldesk_transaction_conflicts_total",
		Help: "Count of optimistic transactions aborted on conflict",
	}, []string{"op"})

	referralEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referraldesk_referral_events_total",
		Help: "Count of accepted click and signup events",
	}, []string{"kind"})

	activeLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "referraldesk_active_links",
		Help: "Number of referral links currently in the store",
	})

	counterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referraldesk_counter_repairs_total",
		Help: "Count of denormalized DSA counters repaired by the reconcile worker",
	}, []string{"field"})

	messageDrafts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referraldesk_message_drafts_total",
		Help: "Count of message drafting calls by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveEngineOp records the duration of one engine operation with a result label
func ObserveEngineOp(op, result string, duration time.Duration) {
	engineOpDuration.WithLabelValues(op, result).Observe(duration.Seconds())
}

// ObserveConflict increments the transaction conflict counter for an operation
func ObserveConflict(op string) {
	transactionConflicts.WithLabelValues(op).Inc()
}

// ObserveReferralEvent counts an accepted click or signup
func ObserveReferralEvent(kind string) {
	referralEvents.WithLabelValues(kind).Inc()
}

// SetActiveLinks sets the link gauge to a specific count
func SetActiveLinks(count int) {
	if count < 0 {
		count = 0
	}
	activeLinks.Set(float64(count))
}

// ObserveCounterRepair counts one repaired DSA counter field
func ObserveCounterRepair(field string) {
	counterRepairs.WithLabelValues(field).Inc()
}

// ObserveMessageDraft records the outcome of a drafting call
func ObserveMessageDraft(result string) {
	messageDrafts.WithLabelValues(result).Inc()
}
