package monitoring

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsService interface {
	// HTTP metrics
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	IncrementHTTPErrors(method, endpoint string, errorType string)

	// Placement metrics
	RecordPlacement(slot string, spillover bool, duration time.Duration)
	IncrementPlacementFailures(reason string)

	// Distribution metrics
	RecordDistribution(rows int, duration time.Duration)
	RecordCommissionAmount(credited, frozen float64)
	IncrementBlockedCredits()
	IncrementInvariantViolations()

	// Withdrawal metrics
	RecordWithdrawal(status string)
	IncrementWithdrawalRejections(reason string)

	// Cache metrics
	RecordCacheOperation(operation string, hit bool)

	// System metrics
	RecordSystemMetrics()
}

type prometheusMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec

	placementsTotal        *prometheus.CounterVec
	placementDuration      prometheus.Histogram
	placementFailuresTotal *prometheus.CounterVec

	distributionsTotal       prometheus.Counter
	distributionRows         prometheus.Histogram
	distributionDuration     prometheus.Histogram
	commissionCreditedTotal  prometheus.Counter
	commissionFrozenTotal    prometheus.Counter
	blockedCreditsTotal      prometheus.Counter
	invariantViolationsTotal prometheus.Counter

	withdrawalsTotal          *prometheus.CounterVec
	withdrawalRejectionsTotal *prometheus.CounterVec

	cacheOperationsTotal *prometheus.CounterVec

	memoryUsageGauge    prometheus.Gauge
	goroutineCountGauge prometheus.Gauge
	uptimeGauge         prometheus.Gauge

	startTime time.Time
}

func NewPrometheusMetrics() MetricsService {
	m := &prometheusMetrics{
		startTime: time.Now(),
	}

	m.initMetrics()
	return m
}

func (m *prometheusMetrics) initMetrics() {
	m.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	m.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affiliate_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	m.httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_http_errors_total",
			Help: "Total number of HTTP errors",
		},
		[]string{"method", "endpoint", "error_type"},
	)

	m.placementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_placements_total",
			Help: "Total number of network placements",
		},
		[]string{"slot", "spillover"},
	)

	m.placementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affiliate_api_placement_duration_seconds",
			Help:    "Placement search duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
		},
	)

	m.placementFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_placement_failures_total",
			Help: "Total number of failed placements",
		},
		[]string{"reason"},
	)

	m.distributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_api_distributions_total",
			Help: "Total number of commission distributions",
		},
	)

	m.distributionRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affiliate_api_distribution_rows",
			Help:    "Commission rows written per distribution",
			Buckets: []float64{1, 2, 3, 5, 8, 11},
		},
	)

	m.distributionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affiliate_api_distribution_duration_seconds",
			Help:    "Distribution processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	m.commissionCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_api_commission_credited_total",
			Help: "Total commission amount credited to available balances",
		},
	)

	m.commissionFrozenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_api_commission_frozen_total",
			Help: "Total commission amount credited to frozen balances",
		},
	)

	m.blockedCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_api_blocked_credits_total",
			Help: "Total number of commission rows blocked by qualification",
		},
	)

	m.invariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_api_invariant_violations_total",
			Help: "Total number of aborted distributions due to row-sum mismatch",
		},
	)

	m.withdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_withdrawals_total",
			Help: "Total number of withdrawal requests by status",
		},
		[]string{"status"},
	)

	m.withdrawalRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_withdrawal_rejections_total",
			Help: "Total number of rejected withdrawal requests",
		},
		[]string{"reason"},
	)

	m.cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_api_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"},
	)

	m.memoryUsageGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affiliate_api_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
	)

	m.goroutineCountGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affiliate_api_goroutines_count",
			Help: "Current number of goroutines",
		},
	)

	m.uptimeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affiliate_api_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
}

func (m *prometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, fmt.Sprintf("%d", statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *prometheusMetrics) IncrementHTTPErrors(method, endpoint string, errorType string) {
	m.httpErrorsTotal.WithLabelValues(method, endpoint, errorType).Inc()
}

func (m *prometheusMetrics) RecordPlacement(slot string, spillover bool, duration time.Duration) {
	spilloverStr := "false"
	if spillover {
		spilloverStr = "true"
	}
	m.placementsTotal.WithLabelValues(slot, spilloverStr).Inc()
	m.placementDuration.Observe(duration.Seconds())
}

func (m *prometheusMetrics) IncrementPlacementFailures(reason string) {
	m.placementFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *prometheusMetrics) RecordDistribution(rows int, duration time.Duration) {
	m.distributionsTotal.Inc()
	m.distributionRows.Observe(float64(rows))
	m.distributionDuration.Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordCommissionAmount(credited, frozen float64) {
	m.commissionCreditedTotal.Add(credited)
	m.commissionFrozenTotal.Add(frozen)
}

func (m *prometheusMetrics) IncrementBlockedCredits() {
	m.blockedCreditsTotal.Inc()
}

func (m *prometheusMetrics) IncrementInvariantViolations() {
	m.invariantViolationsTotal.Inc()
}

func (m *prometheusMetrics) RecordWithdrawal(status string) {
	m.withdrawalsTotal.WithLabelValues(status).Inc()
}

func (m *prometheusMetrics) IncrementWithdrawalRejections(reason string) {
	m.withdrawalRejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *prometheusMetrics) RecordCacheOperation(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

func (m *prometheusMetrics) RecordSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.memoryUsageGauge.Set(float64(memStats.Alloc))
	m.goroutineCountGauge.Set(float64(runtime.NumGoroutine()))
	m.uptimeGauge.Set(time.Since(m.startTime).Seconds())
}

// StartSystemMetricsRecording refreshes process gauges on an interval.
func StartSystemMetricsRecording(metrics MetricsService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			metrics.RecordSystemMetrics()
		}
	}()
}
