package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promptmaster"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Ledger metrics
	reconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reconciliations_total",
			Help:      "Daily reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	rewardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rewards_total",
			Help:      "Reward claims by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	spendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "spends_total",
			Help:      "Coin debits by outcome",
		},
		[]string{"outcome"},
	)

	coinsGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "coins_granted_total",
			Help:      "Coins credited by source",
		},
		[]string{"source"},
	)

	// Subscription metrics
	subscriptionsActivated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "activated_total",
			Help:      "Subscriptions activated after payment confirmation",
		},
		[]string{"plan"},
	)

	activeSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "active_count",
			Help:      "Subscriptions whose end date is in the future",
		},
		[]string{"plan"},
	)

	// Feed metrics
	feedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Live account subscriptions currently open",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordReconciliation counts a reconciliation by outcome (created, granted, unchanged, error)
func RecordReconciliation(outcome string) {
	reconciliationsTotal.WithLabelValues(outcome).Inc()
}

// RecordReward counts a reward claim
func RecordReward(kind, outcome string) {
	rewardsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSpend counts a debit attempt
func RecordSpend(outcome string) {
	spendsTotal.WithLabelValues(outcome).Inc()
}

// RecordCoinsGranted adds credited coins for a source
func RecordCoinsGranted(source string, amount int64) {
	if amount > 0 {
		coinsGranted.WithLabelValues(source).Add(float64(amount))
	}
}

// RecordSubscriptionActivated counts an activation
func RecordSubscriptionActivated(plan string) {
	subscriptionsActivated.WithLabelValues(plan).Inc()
}

// SetActiveSubscriptions sets the gauge for active subscriptions of a plan
func SetActiveSubscriptions(plan string, count float64) {
	activeSubscriptions.WithLabelValues(plan).Set(count)
}

// FeedSubscriberAdded increments the open subscription gauge
func FeedSubscriberAdded() { feedSubscribers.Inc() }

// FeedSubscriberRemoved decrements the open subscription gauge
func FeedSubscriberRemoved() { feedSubscribers.Dec() }

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
