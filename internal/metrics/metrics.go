package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Trade evaluation metrics
	TradesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_trades_evaluated_total",
			Help: "Total number of trade evaluations",
		},
		[]string{"status"}, // clean, suspicious, duplicate, filtered, error
	)

	TradeEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poly_trade_evaluation_duration_seconds",
			Help:    "Duration of a single trade evaluation",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scan cycle metrics
	ScanCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_scan_cycles_total",
			Help: "Total number of scan cycles",
		},
		[]string{"status"}, // completed, skipped, error
	)

	ScanCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poly_scan_cycle_duration_seconds",
			Help:    "Duration of a full scan cycle",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Alert metrics
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_alerts_triggered_total",
			Help: "Total number of alerts triggered",
		},
		[]string{"level"}, // critical, high, medium, low
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"status", "type"}, // success/error, discord/smtp/log
	)

	// Analyzer metrics
	AnalyzerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_analyzer_requests_total",
			Help: "Total number of external analyzer requests",
		},
		[]string{"status"}, // success, error
	)

	AnalyzerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poly_analyzer_fallbacks_total",
			Help: "Total number of evaluations that used the deterministic fallback score",
		},
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_api_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"api", "endpoint", "status"}, // data/gamma, /trades, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poly_api_request_duration_seconds",
			Help:    "Duration of upstream API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"}, // get/insert/update, success/error
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poly_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Win rate resolution metrics
	WinRateCalculations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poly_win_rate_calculations_total",
			Help: "Total number of win rate calculation runs",
		},
	)

	MarketsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poly_markets_resolved_total",
			Help: "Total number of markets resolved",
		},
	)

	// Suspicion score distribution on the fused 0-100 scale.
	SuspicionScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poly_suspicion_scores",
			Help:    "Distribution of fused suspicion scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100},
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poly_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordTradeEvaluation records the outcome and duration of one evaluation.
func RecordTradeEvaluation(duration time.Duration, status string) {
	TradesEvaluated.WithLabelValues(status).Inc()
	TradeEvaluationDuration.Observe(duration.Seconds())
}

// RecordScanCycle records a finished or skipped scan cycle.
func RecordScanCycle(duration time.Duration, status string) {
	ScanCycles.WithLabelValues(status).Inc()
	if status != "skipped" {
		ScanCycleDuration.Observe(duration.Seconds())
	}
}

// RecordAlert records an alert delivery attempt.
func RecordAlert(level, sendStatus, alertType string) {
	AlertsTriggered.WithLabelValues(level).Inc()
	AlertsSent.WithLabelValues(sendStatus, alertType).Inc()
}

// RecordAnalyzerRequest records an analyzer round trip; fallback marks that
// the deterministic substitute score was used instead.
func RecordAnalyzerRequest(err error, fallback bool) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AnalyzerRequests.WithLabelValues(status).Inc()
	if fallback {
		AnalyzerFallbacks.Inc()
	}
}

// RecordAPIRequest records upstream API request metrics.
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequests.WithLabelValues(api, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics.
func RecordDatabaseQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWinRateCalculation records a win rate resolution run.
func RecordWinRateCalculation(marketsResolved int) {
	WinRateCalculations.Inc()
	MarketsResolved.Add(float64(marketsResolved))
}

// RecordSuspicionScore records a fused suspicion score.
func RecordSuspicionScore(score int) {
	SuspicionScores.Observe(float64(score))
}

// RecordHealthCheck records health check status.
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
